// Package filter selects which journal updates reach a pipe.
//
// Each method returns true if the update should be processed and false if
// it should be skipped. A pipe processes an update only when every one of
// its filters lets it through.
package filter

import (
	"github.com/lugondev/go-cash/internal/datasource"
	"github.com/lugondev/go-cash/pkg/types"
)

// Filter decides per update whether a pipe sees it.
type Filter interface {
	// FilterAccount filters committed account writes.
	FilterAccount(datasourceID datasource.DatasourceID, update *datasource.AccountUpdate) bool

	// FilterTransaction filters executed transactions, committed or not.
	FilterTransaction(datasourceID datasource.DatasourceID, update *datasource.TransactionUpdate) bool
}

// BaseFilter allows everything. Embed it to override only one method.
type BaseFilter struct{}

func (f *BaseFilter) FilterAccount(datasource.DatasourceID, *datasource.AccountUpdate) bool {
	return true
}

func (f *BaseFilter) FilterTransaction(datasource.DatasourceID, *datasource.TransactionUpdate) bool {
	return true
}

// DatasourceFilter passes updates from the listed datasources only.
type DatasourceFilter struct {
	allowedDatasources []datasource.DatasourceID
}

// NewDatasourceFilter creates a filter that allows updates from a single datasource.
func NewDatasourceFilter(datasourceIDs ...datasource.DatasourceID) *DatasourceFilter {
	return &DatasourceFilter{allowedDatasources: datasourceIDs}
}

func (f *DatasourceFilter) isAllowed(id datasource.DatasourceID) bool {
	for _, allowed := range f.allowedDatasources {
		if allowed == id {
			return true
		}
	}
	return false
}

func (f *DatasourceFilter) FilterAccount(id datasource.DatasourceID, _ *datasource.AccountUpdate) bool {
	return f.isAllowed(id)
}

func (f *DatasourceFilter) FilterTransaction(id datasource.DatasourceID, _ *datasource.TransactionUpdate) bool {
	return f.isAllowed(id)
}

// ProgramFilter passes accounts owned by, and transactions with a top-level
// instruction addressed to, one of the given programs.
type ProgramFilter struct {
	programs map[types.Pubkey]struct{}
}

// NewProgramFilter creates a ProgramFilter for programIDs.
func NewProgramFilter(programIDs ...types.Pubkey) *ProgramFilter {
	programs := make(map[types.Pubkey]struct{}, len(programIDs))
	for _, id := range programIDs {
		programs[id] = struct{}{}
	}
	return &ProgramFilter{programs: programs}
}

func (f *ProgramFilter) FilterAccount(_ datasource.DatasourceID, update *datasource.AccountUpdate) bool {
	_, ok := f.programs[update.Account.Owner]
	return ok
}

func (f *ProgramFilter) FilterTransaction(_ datasource.DatasourceID, update *datasource.TransactionUpdate) bool {
	for _, ix := range update.Instructions {
		if _, ok := f.programs[ix.ProgramID]; ok {
			return true
		}
	}
	return false
}

// SucceededFilter drops transactions that did not commit.
type SucceededFilter struct {
	BaseFilter
}

// NewSucceededFilter creates a SucceededFilter.
func NewSucceededFilter() *SucceededFilter {
	return &SucceededFilter{}
}

func (f *SucceededFilter) FilterTransaction(_ datasource.DatasourceID, update *datasource.TransactionUpdate) bool {
	return update.Succeeded()
}

// FilterChain chains multiple filters together.
// All filters must pass for the update to be processed.
type FilterChain struct {
	filters []Filter
}

// NewFilterChain creates a new filter chain with the given filters.
func NewFilterChain(filters ...Filter) *FilterChain {
	return &FilterChain{filters: filters}
}

// Add adds a filter to the chain.
func (c *FilterChain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

func (c *FilterChain) FilterAccount(id datasource.DatasourceID, update *datasource.AccountUpdate) bool {
	return CheckAccountFilters(id, c.filters, update)
}

func (c *FilterChain) FilterTransaction(id datasource.DatasourceID, update *datasource.TransactionUpdate) bool {
	return CheckTransactionFilters(id, c.filters, update)
}

// CheckAccountFilters reports whether update passes every filter.
func CheckAccountFilters(id datasource.DatasourceID, filters []Filter, update *datasource.AccountUpdate) bool {
	for _, f := range filters {
		if !f.FilterAccount(id, update) {
			return false
		}
	}
	return true
}

// CheckTransactionFilters reports whether update passes every filter.
func CheckTransactionFilters(id datasource.DatasourceID, filters []Filter, update *datasource.TransactionUpdate) bool {
	for _, f := range filters {
		if !f.FilterTransaction(id, update) {
			return false
		}
	}
	return true
}
