// Copyright ©2023 The oxbow-go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// A Block is a cached decompressed BGZF block. Base is the file offset
// of the block's gzip member and Next the offset of the following
// member. Data must be treated as immutable.
type Block struct {
	Base int64
	Next int64
	Data []byte
}

// A Cache stores decompressed blocks keyed by the file offset of their
// gzip member. Caches are consulted by Seek, which is the only path
// that revisits blocks; sequential reads do not look blocks up, though
// every block the Reader decompresses is stored.
type Cache interface {
	Get(base int64) (Block, bool)
	Put(base int64, b Block)
}

// NewLRUCache returns a Cache retaining the n most recently used
// blocks.
func NewLRUCache(n int) Cache {
	c, err := lru.New[int64, Block](n)
	if err != nil {
		panic("bgzf: invalid cache size")
	}
	return lruCache{c}
}

type lruCache struct {
	c *lru.Cache[int64, Block]
}

func (c lruCache) Get(base int64) (Block, bool) { return c.c.Get(base) }

func (c lruCache) Put(base int64, b Block) { c.c.Add(base, b) }
