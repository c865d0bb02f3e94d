package authority

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/pkg/types"
)

const (
	// MaxSeeds is the maximum number of seeds including the bump.
	MaxSeeds = 16
	// MaxSeedLength is the maximum length of a single seed.
	MaxSeedLength = 32
)

// Derived is a program address together with the seeds that produce it.
type Derived struct {
	Address types.Pubkey
	Bump    uint8
	Seeds   [][]byte
}

// SignerSeeds returns the seeds with the bump appended, the form passed to a
// cross-program invocation to sign for the address.
func (d Derived) SignerSeeds() [][]byte {
	out := make([][]byte, 0, len(d.Seeds)+1)
	out = append(out, d.Seeds...)
	return append(out, []byte{d.Bump})
}

// String returns the base58 address.
func (d Derived) String() string {
	return d.Address.String()
}

// CreateAddress hashes seeds (bump included) under programID. It fails when
// the seeds are malformed or the result lies on the ed25519 curve.
func CreateAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	if err := validateSeeds(seeds, 0); err != nil {
		return types.Pubkey{}, err
	}
	addr, err := solana.CreateProgramAddress(seeds, programID)
	if err != nil {
		return types.Pubkey{}, cerrors.ErrInvalidSeeds.WithCause(err)
	}
	return addr, nil
}

// FindAddress searches bumps from 255 down to 0 and returns the first
// off-curve address. It returns ErrNoViableBump when every bump lands on the
// curve.
func FindAddress(seeds [][]byte, programID types.Pubkey) (Derived, error) {
	if err := validateSeeds(seeds, 1); err != nil {
		return Derived{}, err
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		addr, err := solana.CreateProgramAddress(withBump, programID)
		if err != nil {
			continue
		}
		return Derived{
			Address: addr,
			Bump:    uint8(bump),
			Seeds:   copySeeds(seeds),
		}, nil
	}
	return Derived{}, cerrors.ErrNoViableBump.WithDetails(map[string]any{"program": programID.String()})
}

// Verify checks that presented is the address derived for what.
func Verify(what string, presented types.Pubkey, expected Derived) error {
	return VerifyAddress(what, presented, expected.Address)
}

// VerifyAddress checks that presented equals expected.
func VerifyAddress(what string, presented, expected types.Pubkey) error {
	if !presented.Equals(expected) {
		return cerrors.SeedMismatch(what, expected.String(), presented.String())
	}
	return nil
}

// AssociatedTokenAddress returns the canonical token account address for
// (owner, mint).
func AssociatedTokenAddress(owner, mint types.Pubkey) (Derived, error) {
	return FindAddress(
		[][]byte{owner.Bytes(), solana.TokenProgramID.Bytes(), mint.Bytes()},
		solana.SPLAssociatedTokenAccountProgramID,
	)
}

func validateSeeds(seeds [][]byte, reserve int) error {
	if len(seeds)+reserve > MaxSeeds {
		return cerrors.ErrInvalidSeeds.WithDetails(map[string]any{
			"reason": fmt.Sprintf("too many seeds: %d", len(seeds)),
		})
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return cerrors.ErrInvalidSeeds.WithDetails(map[string]any{
				"reason": fmt.Sprintf("seed %d is %d bytes", i, len(s)),
			})
		}
	}
	return nil
}

func copySeeds(seeds [][]byte) [][]byte {
	out := make([][]byte, len(seeds))
	for i, s := range seeds {
		out[i] = append([]byte(nil), s...)
	}
	return out
}
