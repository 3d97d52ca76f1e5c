// Package repository defines the contracts shared between storage
// implementations and their consumers.
package repository

import "errors"

// ErrLessonExists is returned by ledger writes when a lesson row
// already exists for the (subscriber, local date) pair.
var ErrLessonExists = errors.New("lesson already recorded for this date")
