// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package dedup suppresses repeated webhook deliveries for events that
// GitHub is known to redeliver for a single user action.
package dedup

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultTTL is how long a recorded fingerprint suppresses
	// duplicates for.
	DefaultTTL = 10 * time.Minute

	// DefaultCapacity bounds the number of fingerprints held; beyond it
	// the least recently used entry is evicted.
	DefaultCapacity = 1000
)

// Fingerprint is a derived identity for one logical user action. It is
// used only for deduplication, never for storage identity.
type Fingerprint string

// StarFingerprint derives the fingerprint for a star event. Stars are
// identified by who starred which repository; the star count or message
// content play no part.
func StarFingerprint(repositoryID, senderID int64) Fingerprint {
	return Fingerprint(fmt.Sprintf("%d:%d", repositoryID, senderID))
}

// Cache is a time and capacity bounded set of recently seen event
// fingerprints. It is a best effort dampener: duplicates beyond the TTL
// window or evicted under capacity pressure are accepted downstream.
type Cache struct {
	mu  sync.Mutex
	lru *expirable.LRU[Fingerprint, struct{}]
}

// NewCache returns a cache bounded by the input TTL and capacity.
// Instances are owned by the process-wide server state; their lifetime
// is the process lifetime.
func NewCache(ttl time.Duration, capacity int) *Cache {
	return &Cache{
		lru: expirable.NewLRU[Fingerprint, struct{}](capacity, nil, ttl),
	}
}

// NewDefaultCache returns a cache with the default TTL and capacity.
func NewDefaultCache() *Cache {
	return NewCache(DefaultTTL, DefaultCapacity)
}

// SeenOrRecord atomically reports whether the fingerprint was already
// recorded, recording it if not.
func (c *Cache) SeenOrRecord(fp Fingerprint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.lru.Get(fp); ok {
		return true
	}
	c.lru.Add(fp, struct{}{})
	return false
}
