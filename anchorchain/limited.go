// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package anchorchain

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/validator"
)

// request pacing towards the daemon
const (
	defaultRequestsPerSecond = 15.0
	defaultBurst             = 5
	maximumRetries           = 3
	initialRetryDelay        = 250 * time.Millisecond
)

// Limited - a client wrapper that paces requests and retries
// transient failures with doubling delays
type Limited struct {
	inner   Client
	limiter *rate.Limiter
	retries int
}

// NewLimited - wrap a client with the default pacing
func NewLimited(inner Client) *Limited {
	return &Limited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurst),
		retries: maximumRetries,
	}
}

func (l *Limited) do(ctx context.Context, call func() error) error {
	delay := initialRetryDelay
	var err error
	for attempt := 0; attempt <= l.retries; attempt += 1 {
		if err = l.limiter.Wait(ctx); nil != err {
			return err
		}
		if err = call(); nil == err {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

// GetBestChainLock - the Client interface
func (l *Limited) GetBestChainLock(ctx context.Context) (*ChainLock, error) {
	var lock *ChainLock
	err := l.do(ctx, func() error {
		var err error
		lock, err = l.inner.GetBestChainLock(ctx)
		return err
	})
	return lock, err
}

// GetBlockHash - the Client interface
func (l *Limited) GetBlockHash(ctx context.Context, height uint32) (merkle.Digest, error) {
	var hash merkle.Digest
	err := l.do(ctx, func() error {
		var err error
		hash, err = l.inner.GetBlockHash(ctx, height)
		return err
	})
	return hash, err
}

// GetBlock - the Client interface
func (l *Limited) GetBlock(ctx context.Context, hash merkle.Digest) (*BlockInfo, error) {
	var info *BlockInfo
	err := l.do(ctx, func() error {
		var err error
		info, err = l.inner.GetBlock(ctx, hash)
		return err
	})
	return info, err
}

// GetQuorumListExtended - the Client interface
func (l *Limited) GetQuorumListExtended(ctx context.Context, height uint32) (*QuorumList, error) {
	var list *QuorumList
	err := l.do(ctx, func() error {
		var err error
		list, err = l.inner.GetQuorumListExtended(ctx, height)
		return err
	})
	return list, err
}

// GetQuorumInfo - the Client interface
func (l *Limited) GetQuorumInfo(ctx context.Context, quorumType uint32, quorumHash validator.QuorumHash) (*QuorumInfo, error) {
	var info *QuorumInfo
	err := l.do(ctx, func() error {
		var err error
		info, err = l.inner.GetQuorumInfo(ctx, quorumType, quorumHash)
		return err
	})
	return info, err
}

// MasternodeDiff - the Client interface
func (l *Limited) MasternodeDiff(ctx context.Context, baseHeight uint32, height uint32) (*MasternodeDiff, error) {
	var diff *MasternodeDiff
	err := l.do(ctx, func() error {
		var err error
		diff, err = l.inner.MasternodeDiff(ctx, baseHeight, height)
		return err
	})
	return diff, err
}
