package channeldb

import "fmt"

var (
	// ErrChannelNoExist is returned by StateStore.Restore when no
	// persisted state exists for the requested channel id.
	ErrChannelNoExist = fmt.Errorf("this channel does not exist")

	// ErrNoPastDeltas is returned when a caller asks for history this
	// collaborator was never asked to persist.
	ErrNoPastDeltas = fmt.Errorf("channel has no recorded deltas")

	ErrMetaNotFound = fmt.Errorf("unable to locate meta information")
)
