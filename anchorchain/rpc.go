// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package anchorchain

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/platformd/merkle"
	"github.com/bitmark-inc/platformd/validator"
)

// RPCClient - JSON-RPC access to the anchor chain daemon
//
// one client per daemon; safe for concurrent use, the request id
// counter is the only shared state
type RPCClient struct {
	sync.Mutex

	log      *logger.L
	client   *http.Client
	url      string
	username string
	password string
	id       uint64
}

// NewRPCClient - connect to an anchor chain daemon
//
// an empty caCertificate uses plain http; otherwise the certificate
// pool is built from the PEM file and the connection requires TLS
func NewRPCClient(url string, username string, password string, caCertificate string) (*RPCClient, error) {
	client := &http.Client{}

	if "" != caCertificate {
		certificatePool := x509.NewCertPool()
		data, err := os.ReadFile(caCertificate)
		if nil != err {
			return nil, err
		}
		if !certificatePool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("failed to parse certificate from: %q", caCertificate)
		}
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: certificatePool,
			},
		}
	}

	return &RPCClient{
		log:      logger.New("anchor"),
		client:   client,
		url:      url,
		username: username,
		password: password,
	}, nil
}

// for encoding the RPC arguments
type rpcArguments struct {
	Id     uint64        `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// the RPC error response
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// for decoding the RPC reply
type rpcReply struct {
	Id     uint64      `json:"id"`
	Result interface{} `json:"result"`
	Error  *rpcError   `json:"error"`
}

func (r *RPCClient) call(ctx context.Context, method string, params []interface{}, reply interface{}) error {
	r.Lock()
	r.id += 1
	arguments := rpcArguments{
		Id:     r.id,
		Method: method,
		Params: params,
	}
	r.Unlock()

	body, err := json.Marshal(&arguments)
	if nil != err {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if nil != err {
		return err
	}
	request.SetBasicAuth(r.username, r.password)
	request.Header.Set("Content-Type", "application/json")

	response, err := r.client.Do(request)
	if nil != err {
		return err
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if nil != err {
		return err
	}

	result := rpcReply{
		Result: reply,
	}
	if err := json.Unmarshal(data, &result); nil != err {
		return err
	}
	if nil != result.Error {
		r.log.Tracef("rpc: %s  error: %s", method, result.Error.Message)
		return fmt.Errorf("anchor rpc error: %s", result.Error.Message)
	}
	return nil
}

func parseDigest(s string) (merkle.Digest, error) {
	var digest merkle.Digest
	if err := digest.UnmarshalText([]byte(s)); nil != err {
		return merkle.Digest{}, err
	}
	return digest, nil
}

func parseHash32(s string) ([32]byte, error) {
	var hash [32]byte
	buffer, err := hex.DecodeString(s)
	if nil != err {
		return hash, err
	}
	if len(hash) != len(buffer) {
		return hash, fmt.Errorf("hash length: %d  expected: %d", len(buffer), len(hash))
	}
	copy(hash[:], buffer)
	return hash, nil
}

// GetBestChainLock - the Client interface
func (r *RPCClient) GetBestChainLock(ctx context.Context) (*ChainLock, error) {
	var reply struct {
		BlockHash string `json:"blockhash"`
		Height    uint32 `json:"height"`
		Signature string `json:"signature"`
	}
	if err := r.call(ctx, "getbestchainlock", nil, &reply); nil != err {
		return nil, err
	}

	hash, err := parseDigest(reply.BlockHash)
	if nil != err {
		return nil, err
	}
	signature, err := hex.DecodeString(reply.Signature)
	if nil != err {
		return nil, err
	}
	return &ChainLock{
		Height:    reply.Height,
		BlockHash: hash,
		Signature: signature,
	}, nil
}

// GetBlockHash - the Client interface
func (r *RPCClient) GetBlockHash(ctx context.Context, height uint32) (merkle.Digest, error) {
	var reply string
	if err := r.call(ctx, "getblockhash", []interface{}{height}, &reply); nil != err {
		return merkle.Digest{}, err
	}
	return parseDigest(reply)
}

// GetBlock - the Client interface
func (r *RPCClient) GetBlock(ctx context.Context, hash merkle.Digest) (*BlockInfo, error) {
	var reply struct {
		Hash      string `json:"hash"`
		Height    uint32 `json:"height"`
		Time      uint64 `json:"time"` // seconds
		ChainLock bool   `json:"chainlock"`
	}
	if err := r.call(ctx, "getblock", []interface{}{hash.String(), 1}, &reply); nil != err {
		return nil, err
	}

	blockHash, err := parseDigest(reply.Hash)
	if nil != err {
		return nil, err
	}
	return &BlockInfo{
		Hash:        blockHash,
		Height:      reply.Height,
		Time:        reply.Time * 1000,
		ChainLocked: reply.ChainLock,
	}, nil
}

// GetQuorumListExtended - the Client interface
func (r *RPCClient) GetQuorumListExtended(ctx context.Context, height uint32) (*QuorumList, error) {
	var reply struct {
		Quorums map[string][]string `json:"quorums"` // quorum type → quorum hashes
	}
	if err := r.call(ctx, "quorumlistextended", []interface{}{height}, &reply); nil != err {
		return nil, err
	}

	list := &QuorumList{
		Quorums: make(map[uint32][]validator.QuorumHash, len(reply.Quorums)),
	}
	for quorumType, hashes := range reply.Quorums {
		n, err := strconv.ParseUint(quorumType, 10, 32)
		if nil != err {
			return nil, err
		}
		parsed := make([]validator.QuorumHash, len(hashes))
		for i, s := range hashes {
			hash, err := parseHash32(s)
			if nil != err {
				return nil, err
			}
			parsed[i] = validator.QuorumHash(hash)
		}
		list.Quorums[uint32(n)] = parsed
	}
	return list, nil
}

// GetQuorumInfo - the Client interface
func (r *RPCClient) GetQuorumInfo(ctx context.Context, quorumType uint32, quorumHash validator.QuorumHash) (*QuorumInfo, error) {
	var reply struct {
		QuorumHash string `json:"quorumHash"`
		Height     uint32 `json:"height"`
		Members    []struct {
			ProTxHash   string `json:"proTxHash"`
			PubKeyShare string `json:"pubKeyShare"`
			Valid       bool   `json:"valid"`
		} `json:"members"`
		QuorumPublicKey string `json:"quorumPublicKey"`
	}
	arguments := []interface{}{quorumType, hex.EncodeToString(quorumHash[:])}
	if err := r.call(ctx, "quoruminfo", arguments, &reply); nil != err {
		return nil, err
	}

	hash, err := parseHash32(reply.QuorumHash)
	if nil != err {
		return nil, err
	}
	thresholdPublicKey, err := hex.DecodeString(reply.QuorumPublicKey)
	if nil != err {
		return nil, err
	}

	info := &QuorumInfo{
		QuorumHash:         validator.QuorumHash(hash),
		QuorumType:         quorumType,
		Height:             reply.Height,
		Members:            make([]QuorumMember, 0, len(reply.Members)),
		ThresholdPublicKey: thresholdPublicKey,
	}
	for _, member := range reply.Members {
		proTxHash, err := parseHash32(member.ProTxHash)
		if nil != err {
			return nil, err
		}
		share, err := hex.DecodeString(member.PubKeyShare)
		if nil != err {
			return nil, err
		}
		info.Members = append(info.Members, QuorumMember{
			ProTxHash:      validator.ProTxHash(proTxHash),
			PublicKeyShare: share,
			Valid:          member.Valid,
		})
	}
	return info, nil
}

// MasternodeDiff - the Client interface
func (r *RPCClient) MasternodeDiff(ctx context.Context, baseHeight uint32, height uint32) (*MasternodeDiff, error) {
	type wireEntry struct {
		ProTxHash     string `json:"proTxHash"`
		OwnerKeyHash  string `json:"ownerKeyHash"`
		VotingKeyHash string `json:"votingKeyHash"`
		PayoutScript  string `json:"payoutScript"`
		Revision      uint64 `json:"revision"`
	}
	var reply struct {
		BaseHeight uint32      `json:"baseHeight"`
		Height     uint32      `json:"height"`
		Added      []wireEntry `json:"added"`
		Updated    []wireEntry `json:"updated"`
		Removed    []string    `json:"removed"`
	}
	if err := r.call(ctx, "masternodelistdiff", []interface{}{baseHeight, height}, &reply); nil != err {
		return nil, err
	}

	parseEntry := func(w *wireEntry) (MasternodeEntry, error) {
		proTxHash, err := parseHash32(w.ProTxHash)
		if nil != err {
			return MasternodeEntry{}, err
		}
		ownerKeyHash, err := hex.DecodeString(w.OwnerKeyHash)
		if nil != err {
			return MasternodeEntry{}, err
		}
		votingKeyHash, err := hex.DecodeString(w.VotingKeyHash)
		if nil != err {
			return MasternodeEntry{}, err
		}
		payoutScript, err := hex.DecodeString(w.PayoutScript)
		if nil != err {
			return MasternodeEntry{}, err
		}
		return MasternodeEntry{
			ProTxHash:     validator.ProTxHash(proTxHash),
			OwnerKeyHash:  ownerKeyHash,
			VotingKeyHash: votingKeyHash,
			PayoutScript:  payoutScript,
			Revision:      w.Revision,
		}, nil
	}

	diff := &MasternodeDiff{
		BaseHeight: reply.BaseHeight,
		Height:     reply.Height,
		Added:      make([]MasternodeEntry, 0, len(reply.Added)),
		Updated:    make([]MasternodeEntry, 0, len(reply.Updated)),
		Removed:    make([]validator.ProTxHash, 0, len(reply.Removed)),
	}
	for i := range reply.Added {
		entry, err := parseEntry(&reply.Added[i])
		if nil != err {
			return nil, err
		}
		diff.Added = append(diff.Added, entry)
	}
	for i := range reply.Updated {
		entry, err := parseEntry(&reply.Updated[i])
		if nil != err {
			return nil, err
		}
		diff.Updated = append(diff.Updated, entry)
	}
	for _, s := range reply.Removed {
		proTxHash, err := parseHash32(s)
		if nil != err {
			return nil, err
		}
		diff.Removed = append(diff.Removed, validator.ProTxHash(proTxHash))
	}
	return diff, nil
}
