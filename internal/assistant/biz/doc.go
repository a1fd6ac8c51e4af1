// Package biz provides the business logic of the study assistant: chunking
// uploaded documents, building and querying the vector index, gating
// retrieved material for relevance, and synthesizing answers through an
// external chat-completion API.
package biz
