package emotions

import "errors"

var (
	// ErrInvalidConfig is returned for a non-positive threshold or history
	// size, or an empty initial emotion.
	ErrInvalidConfig = errors.New("emotions: invalid stabilizer config")

	// ErrEmptyLabel is returned when a sample carries no label.
	ErrEmptyLabel = errors.New("emotions: empty label")
)
