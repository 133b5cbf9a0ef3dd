// Package websub implements parsing and verification of X-Hub-Signature
// headers, as sent by Mastodon webhook deliveries.
//
// https://www.w3.org/TR/websub/#signing-content
package websub

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// HeaderName is the HTTP header carrying the signature.
const HeaderName = "X-Hub-Signature"

type Algorithm string

const (
	AlgorithmSHA1   = Algorithm("sha1")
	AlgorithmSHA256 = Algorithm("sha256")
	AlgorithmSHA384 = Algorithm("sha384")
	AlgorithmSHA512 = Algorithm("sha512")
)

func (a Algorithm) hashFunc() func() hash.Hash {
	switch a {
	case AlgorithmSHA1:
		return sha1.New
	case AlgorithmSHA256:
		return sha256.New
	case AlgorithmSHA384:
		return sha512.New384
	case AlgorithmSHA512:
		return sha512.New
	}
	return nil
}

func (a Algorithm) digestLength() int {
	switch a {
	case AlgorithmSHA1:
		return sha1.Size
	case AlgorithmSHA256:
		return sha256.Size
	case AlgorithmSHA384:
		return sha512.Size384
	case AlgorithmSHA512:
		return sha512.Size
	}
	return 0
}

// Signature is a parsed X-Hub-Signature header value.
type Signature struct {
	Algorithm Algorithm
	Digest    []byte
}

// ParseSignature parses a header value of the form "<algorithm>=<hex digest>".
// The digest length must match the named algorithm.
func ParseSignature(raw string) (*Signature, error) {
	algoStr, hexDigest, ok := strings.Cut(raw, "=")
	if !ok {
		return nil, fmt.Errorf("malformed signature header")
	}
	algo := Algorithm(strings.ToLower(algoStr))
	if algo.hashFunc() == nil {
		return nil, fmt.Errorf("unknown signature algorithm: %s", algoStr)
	}
	digest, err := hex.DecodeString(hexDigest)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(digest) != algo.digestLength() {
		return nil, fmt.Errorf("signature length mismatch for %s: %d", algo, len(digest))
	}
	return &Signature{Algorithm: algo, Digest: digest}, nil
}

// Verify reports whether this signature is a valid HMAC over body with the
// given secret. The comparison is constant-time. The body must be the raw
// request bytes, captured before any decoding.
func (s *Signature) Verify(secret, body []byte) bool {
	if len(secret) == 0 {
		return false
	}
	mac := hmac.New(s.Algorithm.hashFunc(), secret)
	mac.Write(body)
	return hmac.Equal(s.Digest, mac.Sum(nil))
}

// Sign computes the signature of body under secret using the given algorithm,
// formatted as a header value. Used for tests and outbound deliveries.
func Sign(algo Algorithm, secret, body []byte) string {
	mac := hmac.New(algo.hashFunc(), secret)
	mac.Write(body)
	return fmt.Sprintf("%s=%s", algo, hex.EncodeToString(mac.Sum(nil)))
}
