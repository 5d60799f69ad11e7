package main

import (
	"errors"
	"strings"
)

// ErrorKind classifies why a search did not produce results.
type ErrorKind int

const (
	// ErrInput is an empty or invalid URL; it never reaches the network.
	ErrInput ErrorKind = iota
	// ErrTransport is a network failure or an unreadable body.
	ErrTransport
	// ErrProtocol is a non-2xx status or a 2xx body of the wrong shape.
	ErrProtocol
	// ErrLogical is a 2xx body that carries an error field.
	ErrLogical
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInput:
		return "input"
	case ErrTransport:
		return "transport"
	case ErrProtocol:
		return "protocol"
	case ErrLogical:
		return "logical"
	}
	return "unknown"
}

// SearchError is returned by the similarity client for every failed search.
type SearchError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *SearchError) Error() string { return e.Msg }

func (e *SearchError) Unwrap() error { return e.Err }

var errSearchInFlight = errors.New("a search is already in progress")

const (
	genericErrorMessage = "Sorry, I encountered an error. Please try again."
	hiddenErrorMessage  = "Sorry, something went wrong. Please try again later."
	failedStatus        = "Search failed."
)

// safeErrorPrefixes mark messages that were written for end users.
var safeErrorPrefixes = []string{"Search failed:", "Could not"}

func hasSafePrefix(msg string) bool {
	for _, p := range safeErrorPrefixes {
		if strings.HasPrefix(msg, p) {
			return true
		}
	}
	return false
}

// userErrorMessage picks the chat text shown for err.
func userErrorMessage(err error) string {
	if err == nil {
		return genericErrorMessage
	}
	msg := err.Error()
	var se *SearchError
	if errors.As(err, &se) {
		msg = se.Msg
	}
	if msg == "" {
		return genericErrorMessage
	}
	if hasSafePrefix(msg) {
		return "Sorry, an error occurred: " + msg
	}
	return hiddenErrorMessage
}

// handleSearchError is the single exit for every failed search.
func handleSearchError(l *chatLog, status *statusBar, err error) {
	l.RemoveThinkingPlaceholder()
	l.AppendBot(PlainText(userErrorMessage(err)))
	status.Update(failedStatus)
}
