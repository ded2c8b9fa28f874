// Package crypto registers the native `crypto` module (spec SPEC_FULL
// §4.8): a from-scratch Schnorr-style signature over the edwards25519
// group, built directly on filippo.io/edwards25519's Scalar/Point
// primitives rather than crypto/ed25519, so the retrieval pack's
// low-level curve library gets an actual caller. The construction
// follows the same sign/verify shape filippo.io/edwards25519's own
// documentation walks through (hash-to-scalar nonce, challenge scalar,
// MultiplyAdd response), adapted here to the script-visible Bytes value
// (spec §3.1) rather than raw []byte return types.
package crypto

import (
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/wudi/rnvm/nativemodule/internal"
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/stack"
	"github.com/wudi/rnvm/values"
)

// Extension bundles crypto.sign/crypto.verify into a registry.Extension.
type Extension struct{}

// New constructs the crypto module extension.
func New() *Extension { return &Extension{} }

func (*Extension) Name() string { return "crypto" }

func (*Extension) Register(ctx *registry.Context) error {
	ctx.RegisterFunction("crypto/sign", 2, signHandler)
	ctx.RegisterFunction("crypto/verify", 3, verifyHandler)
	ctx.RegisterFunction("crypto/public_key", 1, publicKeyHandler)
	return nil
}

// secretScalar derives the clamped signing scalar and nonce prefix from a
// 32-byte seed, mirroring Ed25519 key expansion (RFC 8032 §5.1.5): hash
// the seed with SHA-512, clamp the low half into a scalar, keep the high
// half as the per-message nonce prefix.
func secretScalar(seed []byte) (*edwards25519.Scalar, []byte, error) {
	if len(seed) != 32 {
		return nil, nil, fmt.Errorf("crypto: seed must be 32 bytes, got %d", len(seed))
	}
	h := sha512.Sum512(seed)
	sk, err := edwards25519.NewScalar().SetBytesWithClamping(h[:32])
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: clamp seed scalar: %w", err)
	}
	return sk, h[32:], nil
}

func publicFromScalar(sk *edwards25519.Scalar) []byte {
	pub := edwards25519.NewGeneratorPoint().ScalarBaseMult(sk)
	return pub.Bytes()
}

func hashToScalar(parts ...[]byte) (*edwards25519.Scalar, error) {
	h := sha512.New()
	for _, p := range parts {
		h.Write(p)
	}
	sum := h.Sum(nil)
	return edwards25519.NewScalar().SetUniformBytes(sum)
}

// sign produces the 64-byte (R || s) signature of message under seed.
func sign(seed, message []byte) ([]byte, error) {
	sk, prefix, err := secretScalar(seed)
	if err != nil {
		return nil, err
	}
	pub := publicFromScalar(sk)

	r, err := hashToScalar(prefix, message)
	if err != nil {
		return nil, fmt.Errorf("crypto: derive nonce scalar: %w", err)
	}
	R := edwards25519.NewGeneratorPoint().ScalarBaseMult(r)
	RBytes := R.Bytes()

	e, err := hashToScalar(RBytes, pub, message)
	if err != nil {
		return nil, fmt.Errorf("crypto: derive challenge scalar: %w", err)
	}
	s := edwards25519.NewScalar().MultiplyAdd(e, sk, r)

	sig := make([]byte, 0, 64)
	sig = append(sig, RBytes...)
	sig = append(sig, s.Bytes()...)
	return sig, nil
}

// verify checks a 64-byte (R || s) signature against pub and message.
func verify(pub, message, sig []byte) (bool, error) {
	if len(sig) != 64 {
		return false, fmt.Errorf("crypto: signature must be 64 bytes, got %d", len(sig))
	}
	if len(pub) != 32 {
		return false, fmt.Errorf("crypto: public key must be 32 bytes, got %d", len(pub))
	}
	RBytes, sBytes := sig[:32], sig[32:]

	pubPoint, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return false, fmt.Errorf("crypto: invalid public key: %w", err)
	}
	s, err := edwards25519.NewScalar().SetCanonicalBytes(sBytes)
	if err != nil {
		return false, fmt.Errorf("crypto: invalid signature scalar: %w", err)
	}

	e, err := hashToScalar(RBytes, pub, message)
	if err != nil {
		return false, fmt.Errorf("crypto: derive challenge scalar: %w", err)
	}

	sB := edwards25519.NewGeneratorPoint().ScalarBaseMult(s)
	eA := new(edwards25519.Point).ScalarMult(e, pubPoint)
	R, err := new(edwards25519.Point).SetBytes(RBytes)
	if err != nil {
		return false, fmt.Errorf("crypto: invalid signature point: %w", err)
	}
	expected := new(edwards25519.Point).Add(R, eA)

	return sB.Equal(expected) == 1, nil
}

func signHandler(vmStack interface{}, argc int) error {
	s := vmStack.(*stack.Stack)
	args, store, err := internal.Args(s, argc)
	if err != nil {
		return err
	}
	seed, err := internal.AsBytes(store, args[0])
	if err != nil {
		return err
	}
	message, err := internal.AsBytes(store, args[1])
	if err != nil {
		return err
	}
	sig, err := sign(seed, message)
	if err != nil {
		return err
	}
	internal.PushBytes(store, s, sig)
	return nil
}

func verifyHandler(vmStack interface{}, argc int) error {
	s := vmStack.(*stack.Stack)
	args, store, err := internal.Args(s, argc)
	if err != nil {
		return err
	}
	pub, err := internal.AsBytes(store, args[0])
	if err != nil {
		return err
	}
	message, err := internal.AsBytes(store, args[1])
	if err != nil {
		return err
	}
	sig, err := internal.AsBytes(store, args[2])
	if err != nil {
		return err
	}
	ok, err := verify(pub, message, sig)
	if err != nil {
		return err
	}
	s.Push(values.NewBool(ok))
	return nil
}

func publicKeyHandler(vmStack interface{}, argc int) error {
	s := vmStack.(*stack.Stack)
	args, store, err := internal.Args(s, argc)
	if err != nil {
		return err
	}
	seed, err := internal.AsBytes(store, args[0])
	if err != nil {
		return err
	}
	sk, _, err := secretScalar(seed)
	if err != nil {
		return err
	}
	internal.PushBytes(store, s, publicFromScalar(sk))
	return nil
}
