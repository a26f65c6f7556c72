package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Algorithm names a digest used for selfHash. Stored hashes carry the
// algorithm as a prefix ("sha256:<hex>") so old events keep verifying after
// the configured algorithm changes.
type Algorithm string

const (
	SHA256     Algorithm = "sha256"
	SHA3_256   Algorithm = "sha3-256"
	BLAKE2b256 Algorithm = "blake2b-256"
)

// DefaultAlgorithm is used when none is configured.
const DefaultAlgorithm = SHA256

// ParseAlgorithm parses a configured algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if a == "" {
		return DefaultAlgorithm, nil
	}
	if _, err := a.newHash(); err != nil {
		return "", err
	}
	return a, nil
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case SHA3_256:
		return sha3.New256(), nil
	case BLAKE2b256:
		return blake2b.New256(nil)
	}
	return nil, fmt.Errorf("unsupported hash algorithm %q", string(a))
}

// TimestampLayout is the canonical rendering of occurredAt.
const TimestampLayout = time.RFC3339Nano

// NormalizeTime truncates t to the precision every store keeps.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// CanonicalContent renders the hashed fields of e in a fixed order. Each field
// is length-prefixed ("<len>:<value>,"), absent values are written as "~,".
// previousHash is the last field, so selfHash covers the link as well.
func CanonicalContent(e *Event) []byte {
	var b strings.Builder
	str := func(s string) {
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
		b.WriteByte(',')
	}
	optStr := func(s *string) {
		if s == nil {
			b.WriteString("~,")
			return
		}
		str(*s)
	}
	optInt := func(v *int64) {
		if v == nil {
			b.WriteString("~,")
			return
		}
		str(strconv.FormatInt(*v, 10))
	}

	str(e.ChainScope)
	optInt(e.TenantID)
	str(e.EntityType)
	optInt(e.EntityID)
	str(e.EntityCode)
	str(string(e.OperationType))
	str(e.Description)
	optStr(e.BeforeState)
	optStr(e.AfterState)
	if len(e.ChangedFields) == 0 {
		b.WriteString("~,")
	} else {
		var fields strings.Builder
		for _, f := range e.ChangedFields {
			fields.WriteString(strconv.Itoa(len(f)))
			fields.WriteByte(':')
			fields.WriteString(f)
			fields.WriteByte(',')
		}
		str(fields.String())
	}
	str(strconv.FormatInt(e.ActorID, 10))
	str(NormalizeTime(e.OccurredAt).Format(TimestampLayout))
	optStr(e.PreviousHash)

	return []byte(b.String())
}

// ComputeHash returns "<alg>:<hex digest of CanonicalContent(e)>".
func ComputeHash(alg Algorithm, e *Event) (string, error) {
	h, err := alg.newHash()
	if err != nil {
		return "", err
	}
	h.Write(CanonicalContent(e))
	return string(alg) + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// RecomputeHash recomputes e's selfHash with the algorithm it was written with.
func RecomputeHash(e *Event) (string, error) {
	alg, _, ok := strings.Cut(e.SelfHash, ":")
	if !ok {
		return "", fmt.Errorf("hash %q has no algorithm prefix", e.SelfHash)
	}
	return ComputeHash(Algorithm(alg), e)
}

// EventIntegrity reports whether e's stored selfHash matches its content.
// Unchained events carry no hash and always report false.
func EventIntegrity(e *Event) bool {
	if !e.Chained || e.SelfHash == "" {
		return false
	}
	got, err := RecomputeHash(e)
	return err == nil && got == e.SelfHash
}
