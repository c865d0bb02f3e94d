package authority

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	cerrors "github.com/lugondev/go-cash/internal/errors"
)

var (
	testProgram = solana.MustPublicKeyFromBase58("4b4Y2sVEBpFmuBZ6KMdtKrCqBJjGw3Po2o6Ftgmu2tGU")
	testAmm     = solana.MustPublicKeyFromBase58("8jN8d8wR6dM4AaBnkvbsWw8vbeVLAvAbZ2t1KBhvtkCj")
	testMint    = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	testLender  = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
)

func TestFindAddressIsDeterministic(t *testing.T) {
	seeds := [][]byte{testAmm.Bytes(), testMint.Bytes(), []byte(TagAuthority)}

	a, err := FindAddress(seeds, testProgram)
	if err != nil {
		t.Fatalf("FindAddress: %v", err)
	}
	b, err := FindAddress(seeds, testProgram)
	if err != nil {
		t.Fatalf("FindAddress: %v", err)
	}
	if a.Address != b.Address || a.Bump != b.Bump {
		t.Errorf("derivation not deterministic: %s/%d vs %s/%d", a.Address, a.Bump, b.Address, b.Bump)
	}

	// The signer seeds must reproduce the address, which only succeeds off-curve.
	got, err := CreateAddress(a.SignerSeeds(), testProgram)
	if err != nil {
		t.Fatalf("CreateAddress: %v", err)
	}
	if got != a.Address {
		t.Errorf("expected %s, got %s", a.Address, got)
	}
}

func TestFindAddressMatchesSolanaGo(t *testing.T) {
	seeds := [][]byte{testAmm.Bytes(), testMint.Bytes()}
	want, bump, err := solana.FindProgramAddress(seeds, testProgram)
	if err != nil {
		t.Fatalf("solana.FindProgramAddress: %v", err)
	}

	got, err := FindAddress(seeds, testProgram)
	if err != nil {
		t.Fatalf("FindAddress: %v", err)
	}
	if got.Address != want || got.Bump != bump {
		t.Errorf("expected %s/%d, got %s/%d", want, bump, got.Address, got.Bump)
	}
}

func TestFindAddressRejectsBadSeeds(t *testing.T) {
	long := make([]byte, MaxSeedLength+1)
	if _, err := FindAddress([][]byte{long}, testProgram); !errors.Is(err, cerrors.ErrInvalidSeeds) {
		t.Errorf("expected ErrInvalidSeeds for long seed, got %v", err)
	}

	many := make([][]byte, MaxSeeds)
	for i := range many {
		many[i] = []byte{byte(i)}
	}
	if _, err := FindAddress(many, testProgram); !errors.Is(err, cerrors.ErrInvalidSeeds) {
		t.Errorf("expected ErrInvalidSeeds for too many seeds, got %v", err)
	}
}

func TestPoolSetAddressesAreDistinct(t *testing.T) {
	d := NewDeriver(testProgram)
	pool, err := d.PoolSet(testAmm, testMint)
	if err != nil {
		t.Fatalf("PoolSet: %v", err)
	}
	lender, err := d.LenderSet(pool, testLender)
	if err != nil {
		t.Fatalf("LenderSet: %v", err)
	}

	addrs := map[string]solana.PublicKey{
		"pool":          pool.Pool.Address,
		"cash_pool":     pool.CashPool.Address,
		"authority":     pool.Authority.Address,
		"receipt_mint":  pool.ReceiptMint.Address,
		"cash_mint":     pool.CashMint.Address,
		"scash_mint":    pool.ScashMint.Address,
		"base_custody":  pool.BaseCustody.Address,
		"cash_custody":  pool.CashCustody.Address,
		"lender_auth":   lender.Authority.Address,
		"receipt_slot":  lender.ReceiptSlot.Address,
		"base_account":  lender.BaseAccount.Address,
		"cash_account":  lender.CashAccount.Address,
		"scash_account": lender.ScashAccount.Address,
	}

	seen := make(map[solana.PublicKey]string, len(addrs))
	for name, addr := range addrs {
		if prev, ok := seen[addr]; ok {
			t.Errorf("%s and %s derive the same address %s", name, prev, addr)
		}
		seen[addr] = name
	}

	if pool.Authority.Address == lender.Authority.Address {
		t.Error("pool authority and lender authority must differ")
	}
}

func TestLenderAuthorityIsPerLender(t *testing.T) {
	d := NewDeriver(testProgram)
	pool, err := d.Pool(testAmm, testMint)
	if err != nil {
		t.Fatalf("Pool: %v", err)
	}

	a, err := d.LenderAuthority(pool.Address, testLender)
	if err != nil {
		t.Fatalf("LenderAuthority: %v", err)
	}
	b, err := d.LenderAuthority(pool.Address, testAmm)
	if err != nil {
		t.Fatalf("LenderAuthority: %v", err)
	}
	if a.Address == b.Address {
		t.Error("different lenders must get different authorities")
	}
}

func TestAddressesDependOnProgram(t *testing.T) {
	a, err := NewDeriver(testProgram).PoolAuthority(testAmm, testMint)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewDeriver(solana.TokenProgramID).PoolAuthority(testAmm, testMint)
	if err != nil {
		t.Fatal(err)
	}
	if a.Address == b.Address {
		t.Error("authorities under different programs must differ")
	}
}

func TestVerify(t *testing.T) {
	d := NewDeriver(testProgram)
	auth, err := d.PoolAuthority(testAmm, testMint)
	if err != nil {
		t.Fatal(err)
	}

	if err := Verify("pool_authority", auth.Address, auth); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err = Verify("pool_authority", testLender, auth)
	if !errors.Is(err, cerrors.ErrSeedMismatch) {
		t.Fatalf("expected ErrSeedMismatch, got %v", err)
	}
	if cerrors.KindOf(err) != cerrors.KindDerivation {
		t.Errorf("expected derivation kind, got %s", cerrors.KindOf(err))
	}
}

func TestAssociatedTokenAddressMatchesSolanaGo(t *testing.T) {
	want, _, err := solana.FindAssociatedTokenAddress(testLender, testMint)
	if err != nil {
		t.Fatal(err)
	}
	got, err := AssociatedTokenAddress(testLender, testMint)
	if err != nil {
		t.Fatal(err)
	}
	if got.Address != want {
		t.Errorf("expected %s, got %s", want, got.Address)
	}
}

func TestRegistry(t *testing.T) {
	for _, role := range []Role{RoleAuthority, RoleCashPool, RoleLendingToken, RoleCashToken, RoleScashToken} {
		if got, ok := DefaultRegistry.Lookup(role.Name); !ok || got != role {
			t.Errorf("Lookup(%q) = %+v, %v", role.Name, got, ok)
		}
	}
	if _, ok := DefaultRegistry.Lookup("reserve"); ok {
		t.Error("unregistered role found")
	}

	tests := []struct {
		name  string
		roles []Role
	}{
		{name: "duplicate tag", roles: []Role{{Name: "x", Tag: "a"}, {Name: "y", Tag: "a"}}},
		{name: "duplicate name", roles: []Role{{Name: "x", Tag: "a"}, {Name: "x", Tag: "b"}}},
		{name: "long tag", roles: []Role{{Name: "x", Tag: "ab"}}},
		{name: "empty tag", roles: []Role{{Name: "x", Tag: ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.roles...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDeriverUsesItsRegistry(t *testing.T) {
	d := &Deriver{programID: testProgram, roles: MustNewRegistry(RoleAuthority)}

	if _, err := d.PoolAuthority(testAmm, testMint); err != nil {
		t.Fatalf("PoolAuthority: %v", err)
	}
	if _, err := d.CashMint(testAmm, testMint); !errors.Is(err, cerrors.ErrInvalidSeeds) {
		t.Errorf("CashMint error = %v, want ErrInvalidSeeds", err)
	}
	if _, err := d.PoolSet(testAmm, testMint); !errors.Is(err, cerrors.ErrInvalidSeeds) {
		t.Errorf("PoolSet error = %v, want ErrInvalidSeeds", err)
	}

	// A separately built registry with the same roles derives the same addresses.
	custom := &Deriver{programID: testProgram, roles: MustNewRegistry(RoleAuthority, RoleCashPool, RoleLendingToken, RoleCashToken, RoleScashToken)}
	want, err := NewDeriver(testProgram).ScashMint(testAmm, testMint)
	if err != nil {
		t.Fatal(err)
	}
	got, err := custom.ScashMint(testAmm, testMint)
	if err != nil {
		t.Fatal(err)
	}
	if got.Address != want.Address {
		t.Errorf("ScashMint = %s, want %s", got.Address, want.Address)
	}
}
