// Package session keeps the dashboard's authentication flag in a pluggable
// key/value store and decides, per navigation, whether a page may render.
//
// The flag is a presence marker only: no identity, no token, no expiry.
package session

import (
	"context"
)

type (
	// Change notifies subscribers that Key was set or cleared.
	Change struct {
		Key string
	}

	// Store is the persistence the gate depends on.
	//
	// Subscribe delivers a Change for every Set or Clear made by any writer,
	// including the subscriber itself. The channel is closed once ctx is done.
	// Delivery is best effort: slow subscribers may miss notifications, which
	// is fine because a notification only triggers a fresh read.
	Store interface {
		Get(ctx context.Context, key string) (value string, ok bool, err error)
		Set(ctx context.Context, key, value string) error
		Clear(ctx context.Context, key string) error
		Subscribe(ctx context.Context) (<-chan Change, error)
	}
)
