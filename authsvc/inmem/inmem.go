// Package inmem holds the set of live token UUIDs. A token absent from the
// store is a stale session, whatever its signature says.
package inmem

import (
	"errors"
	"sync"
)

type Client interface {
	Get(key string) error
	Put(key string, value []byte) error
	Delete(key string) error
}

type client struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewClient() Client {
	return &client{data: make(map[string][]byte)}
}

func (c *client) Get(key string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.data[key]; !ok {
		return ErrKeyNotFound
	}

	return nil
}

func (c *client) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = value

	return nil
}

func (c *client) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)

	return nil
}

var ErrKeyNotFound = errors.New("key not found")
