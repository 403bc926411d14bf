package client

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/cloakmatch/psi/internal/crypto"
	"github.com/cloakmatch/psi/internal/errs"
)

const (
	expectedEncryption = "xchacha20poly1305-ietf"
	expectedSuite      = "oprf-ristretto255-sha512"
)

// QueryResult is the outcome of a Query call.
type QueryResult struct {
	Matched  bool
	PrfHex   string
	Metadata []byte
}

// Query implements the client protocol engine's query operation (spec
// §4.5): sync first, confirm the server's suite, perform the blinded
// OPRF round trip, look up the active set, and decrypt on a match.
func (e *Engine) Query(ctx context.Context, ioc string) (QueryResult, error) {
	if _, err := e.Sync(ctx, ""); err != nil {
		return QueryResult{}, err
	}

	info, err := e.HTTP.Describe(ctx, e.Replica.DataName)
	if err != nil {
		return QueryResult{}, err
	}
	if info["encryption"] != expectedEncryption || info["suite"] != expectedSuite {
		return QueryResult{}, errs.New("client.Query", errs.ProtocolMismatch, errProtocolMismatch)
	}

	iocBytes := []byte(ioc)
	r, b, err := crypto.Blind(e.Replica.DataName, iocBytes)
	if err != nil {
		return QueryResult{}, err
	}

	evaluatedHex, err := e.HTTP.Evaluate(ctx, e.Replica.DataName, hex.EncodeToString(b.Bytes()))
	if err != nil {
		return QueryResult{}, err
	}
	evaluated, err := hex.DecodeString(evaluatedHex)
	if err != nil || len(evaluated) != crypto.PointBytes {
		return QueryResult{}, errs.New("client.Query", errs.InvalidPoint, fmt.Errorf("invalid evaluated point from server"))
	}
	var ePoint crypto.Point32
	copy(ePoint[:], evaluated)

	q, err := crypto.Unblind(r, ePoint)
	if err != nil {
		return QueryResult{}, err
	}
	prf := crypto.Finalize(e.Replica.DataName, iocBytes, q)
	prfHex := strings.ToLower(prf.Hex())

	active, err := loadActiveSetWithFallback(e.Replica)
	if err != nil {
		return QueryResult{}, err
	}
	encMeta, ok := active[prfHex]
	if !ok {
		return QueryResult{Matched: false, PrfHex: prfHex}, nil
	}

	nonceHex, ctHex, found := strings.Cut(encMeta, ":")
	if !found {
		return QueryResult{}, errs.New("client.Query", errs.InvalidInput, fmt.Errorf("malformed enc_meta %q", encMeta))
	}
	nonceBytes, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonceBytes) != crypto.NonceBytes {
		return QueryResult{}, errs.New("client.Query", errs.InvalidInput, fmt.Errorf("malformed nonce in enc_meta"))
	}
	ctBytes, err := hex.DecodeString(ctHex)
	if err != nil {
		return QueryResult{}, errs.New("client.Query", errs.InvalidInput, fmt.Errorf("malformed ciphertext in enc_meta"))
	}
	var nonce crypto.Nonce24
	copy(nonce[:], nonceBytes)

	plaintext, err := crypto.DecryptMetadata(e.Replica.DataName, iocBytes, prf, q, nonce, ctBytes)
	if err != nil {
		return QueryResult{}, err
	}

	result := QueryResult{Matched: true, PrfHex: prfHex, Metadata: plaintext}
	e.recordMatch(ioc, result)
	return result, nil
}

// recordMatch appends a best-effort audit line to matches.txt, mirroring
// the original client's behavior; failures here are not fatal to the
// query itself.
func (e *Engine) recordMatch(ioc string, result QueryResult) {
	if !result.Matched {
		return
	}
	line := fmt.Sprintf("%s,%s,%s\n", ioc, result.PrfHex, string(result.Metadata))
	f, err := os.OpenFile(e.Replica.MatchesPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(line)
}
