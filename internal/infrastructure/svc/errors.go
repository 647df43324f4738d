package svc

import "errors"

// ErrUnknownProvider: feed.provider names no registered quote feed
var ErrUnknownProvider = errors.New("unknown quote feed provider")

// ErrNoSinks: every sink is disabled
var ErrNoSinks = errors.New("no sinks enabled")

// ErrStorageInitFailed: a configured store could not be opened
var ErrStorageInitFailed = errors.New("storage initialization failed")
