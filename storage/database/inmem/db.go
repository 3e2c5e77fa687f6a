// Package inmemdb implements the core repositories in memory, for local runs and tests.
package inmemdb

import (
	"sync"

	"github.com/trezcool/pogil/core/instance"
	"github.com/trezcool/pogil/core/responses"
)

type (
	responseID struct {
		instanceID int
		key        string
	}

	DB struct {
		mu        sync.RWMutex
		lastID    int
		instances map[int]*instance.Instance
		responses map[responseID]responses.Response
	}
)

func Open() *DB {
	return &DB{
		instances: make(map[int]*instance.Instance),
		responses: make(map[responseID]responses.Response),
	}
}
