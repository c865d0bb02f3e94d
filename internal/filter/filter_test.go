package filter

import (
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/go-cash/internal/datasource"
	"github.com/lugondev/go-cash/pkg/types"
)

func TestProgramFilter(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()
	f := NewProgramFilter(program)
	id := datasource.NewNamedDatasourceID("test")

	tests := []struct {
		name   string
		update *datasource.TransactionUpdate
		want   bool
	}{
		{"addressed", &datasource.TransactionUpdate{Instructions: []types.Instruction{{ProgramID: other}, {ProgramID: program}}}, true},
		{"other program", &datasource.TransactionUpdate{Instructions: []types.Instruction{{ProgramID: other}}}, false},
		{"empty", &datasource.TransactionUpdate{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.FilterTransaction(id, tt.update); got != tt.want {
				t.Errorf("FilterTransaction() = %v, want %v", got, tt.want)
			}
		})
	}

	owned := &datasource.AccountUpdate{Account: types.Account{Owner: program}}
	if !f.FilterAccount(id, owned) {
		t.Error("expected account owned by program to pass")
	}
	if f.FilterAccount(id, &datasource.AccountUpdate{Account: types.Account{Owner: other}}) {
		t.Error("expected foreign account to be dropped")
	}
}

func TestFilterChain(t *testing.T) {
	journal := datasource.NewNamedDatasourceID("journal")
	other := datasource.NewNamedDatasourceID("other")
	chain := NewFilterChain(NewDatasourceFilter(journal))
	chain.Add(NewSucceededFilter())

	ok := &datasource.TransactionUpdate{}
	failed := &datasource.TransactionUpdate{Err: "boom"}

	if !chain.FilterTransaction(journal, ok) {
		t.Error("committed transaction from journal should pass")
	}
	if chain.FilterTransaction(journal, failed) {
		t.Error("failed transaction should be dropped")
	}
	if chain.FilterTransaction(other, ok) {
		t.Error("update from another datasource should be dropped")
	}
	if !chain.FilterAccount(journal, &datasource.AccountUpdate{}) {
		t.Error("SucceededFilter must not drop accounts")
	}
}
