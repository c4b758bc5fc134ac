package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Level is the lifecycle state of a blob record. Values are ordered so that
// range filters ("at least Trashed") work on the stored integer.
type Level int

const (
	LevelDeleted  Level = -2
	LevelTrashed  Level = -1
	LevelNew      Level = 0
	LevelApproved Level = 1
)

var levelNames = map[Level]string{
	LevelDeleted:  "deleted",
	LevelTrashed:  "trashed",
	LevelNew:      "new",
	LevelApproved: "approved",
}

// String returns the lowercase level name.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(l)) + ")"
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// CanTransition reports whether the state machine allows moving from l to next.
func (l Level) CanTransition(next Level) bool {
	switch l {
	case LevelNew:
		return next == LevelApproved || next == LevelTrashed
	case LevelApproved:
		return next == LevelTrashed
	case LevelTrashed:
		return next == LevelDeleted
	default:
		return false
	}
}

// ParseLevel accepts a level name or its integer value.
func ParseLevel(raw string) (Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return 0, fmt.Errorf("level is required")
	}
	if n, err := strconv.Atoi(value); err == nil {
		level := Level(n)
		if !level.Valid() {
			return 0, fmt.Errorf("invalid level: %s", raw)
		}
		return level, nil
	}
	for level, name := range levelNames {
		if name == value {
			return level, nil
		}
	}
	return 0, fmt.Errorf("invalid level: %s", raw)
}
