package batchSigner

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/signature"
	"github.com/Layr-Labs/ecdsa-batch-signer/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	merkletree "github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
)

var (
	// ErrEmptyBatch is returned when a commitment is requested for a batch without signatures
	ErrEmptyBatch = errors.New("batch has no signatures")
)

// SignatureBatch holds index-aligned signature components, one entry per signer.
// For every i, Signers[i] produced (V[i], R[i], S[i]) over Digest.
type SignatureBatch struct {
	Digest  []byte
	Signers []common.Address
	V       []uint8
	R       [][32]byte
	S       [][32]byte
}

func newSignatureBatch(digest []byte, size int) *SignatureBatch {
	return &SignatureBatch{
		Digest:  digest,
		Signers: make([]common.Address, 0, size),
		V:       make([]uint8, 0, size),
		R:       make([][32]byte, 0, size),
		S:       make([][32]byte, 0, size),
	}
}

func (b *SignatureBatch) append(address common.Address, sig *signature.Signature) {
	b.Signers = append(b.Signers, address)
	b.V = append(b.V, sig.V)
	b.R = append(b.R, sig.R)
	b.S = append(b.S, sig.S)
}

// Len returns the number of signatures in the batch.
func (b *SignatureBatch) Len() int {
	return len(b.V)
}

// Signature reassembles the signature at index i.
func (b *SignatureBatch) Signature(i int) *signature.Signature {
	return &signature.Signature{
		V: b.V[i],
		R: b.R[i],
		S: b.S[i],
	}
}

// CommitmentLeaf encodes entry i as address || r || s || v.
func (b *SignatureBatch) CommitmentLeaf(i int) []byte {
	leaf := make([]byte, 0, common.AddressLength+65)
	leaf = append(leaf, b.Signers[i].Bytes()...)
	leaf = append(leaf, b.R[i][:]...)
	leaf = append(leaf, b.S[i][:]...)
	return append(leaf, b.V[i])
}

// CommitmentTree builds a keccak256 merkle tree over the batch entries in order.
//
// Returns:
//   - *merkletree.MerkleTree: The tree, whose root commits to the whole batch
//   - error: ErrEmptyBatch for an empty batch, or a tree construction error
func (b *SignatureBatch) CommitmentTree() (*merkletree.MerkleTree, error) {
	if b.Len() == 0 {
		return nil, ErrEmptyBatch
	}
	leaves := make([][]byte, b.Len())
	for i := range leaves {
		leaves[i] = b.CommitmentLeaf(i)
	}
	tree, err := merkletree.NewTree(
		merkletree.WithData(leaves),
		merkletree.WithHashType(keccak256.New()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create commitment tree: %w", err)
	}
	return tree, nil
}

type signatureBatchJSON struct {
	Digest  hexutil.Bytes    `json:"digest"`
	Signers []common.Address `json:"signers"`
	V       []uint           `json:"v"`
	R       []common.Hash    `json:"r"`
	S       []common.Hash    `json:"s"`
}

// MarshalJSON encodes the batch with hex strings for the digest, addresses, r and s.
func (b *SignatureBatch) MarshalJSON() ([]byte, error) {
	toHash := func(x [32]byte, _ uint64) common.Hash { return common.Hash(x) }
	return json.Marshal(&signatureBatchJSON{
		Digest:  b.Digest,
		Signers: b.Signers,
		V:       util.Map(b.V, func(v uint8, _ uint64) uint { return uint(v) }),
		R:       util.Map(b.R, toHash),
		S:       util.Map(b.S, toHash),
	})
}

// UnmarshalJSON decodes a batch and checks that all sequences are aligned.
func (b *SignatureBatch) UnmarshalJSON(data []byte) error {
	var dec signatureBatchJSON
	if err := json.Unmarshal(data, &dec); err != nil {
		return err
	}
	n := len(dec.Signers)
	if len(dec.V) != n || len(dec.R) != n || len(dec.S) != n {
		return fmt.Errorf("misaligned batch: %d signers, %d v, %d r, %d s", n, len(dec.V), len(dec.R), len(dec.S))
	}
	for i, v := range dec.V {
		if v > 255 {
			return fmt.Errorf("v[%d] out of range: %d", i, v)
		}
	}
	toBytes := func(h common.Hash, _ uint64) [32]byte { return [32]byte(h) }
	*b = SignatureBatch{
		Digest:  dec.Digest,
		Signers: dec.Signers,
		V:       util.Map(dec.V, func(v uint, _ uint64) uint8 { return uint8(v) }),
		R:       util.Map(dec.R, toBytes),
		S:       util.Map(dec.S, toBytes),
	}
	return nil
}
