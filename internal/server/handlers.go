package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"

	"github.com/lugondev/go-cash/internal/authority"
	"github.com/lugondev/go-cash/internal/decoder"
	cerrors "github.com/lugondev/go-cash/internal/errors"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/internal/storage"
	"github.com/lugondev/go-cash/pkg/types"
)

const (
	requestLimit     = 1 << 20 // 1 MiB
	defaultPageLimit = 50
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "ok",
		"slot":   s.node.Ledger().Slot(),
	}
	if repo := s.node.Repository(); repo != nil {
		if err := repo.Ping(r.Context()); err != nil {
			status["status"] = "degraded"
			status["journal"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["journal"] = "ok"
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	amm, err := pubkeyParam(chi.URLParam(r, "amm"), "amm")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	mint, err := pubkeyParam(chi.URLParam(r, "mint"), "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	stats, err := s.node.Client().PoolStats(amm, mint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":      stats,
		"invariants": invariantStatus(stats.Check()),
	})
}

func invariantStatus(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}

type accountResponse struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Version uint64 `json:"version"`
	Slot    uint64 `json:"slot"`
	Kind    string `json:"kind,omitempty"`
	Decoded any    `json:"decoded,omitempty"`
	Data    []byte `json:"data"`
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := pubkeyParam(chi.URLParam(r, "address"), "address")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	rec, err := s.node.Ledger().Get(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := accountResponse{
		Address: addr.String(),
		Owner:   rec.Owner.String(),
		Version: rec.Version,
		Slot:    rec.Slot,
		Data:    rec.Data,
	}
	acct := rec.Account()
	if decoded := decoder.NewAccountDecoder(s.node.ProgramID()).DecodeAccount(&acct); decoded != nil {
		resp.Kind = decoded.Kind
		resp.Decoded = decoded.Data
	}
	writeJSON(w, http.StatusOK, resp)
}

type derivedAddress struct {
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

func derived(d authority.Derived) derivedAddress {
	return derivedAddress{Address: d.Address.String(), Bump: d.Bump}
}

func (s *Server) derive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amm, err := pubkeyParam(q.Get("amm"), "amm")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	mint, err := pubkeyParam(q.Get("mint"), "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	d := s.node.Client().Deriver()
	set, err := d.PoolSet(amm, mint)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := map[string]any{
		"pool":         derived(set.Pool),
		"cash_pool":    derived(set.CashPool),
		"authority":    derived(set.Authority),
		"receipt_mint": derived(set.ReceiptMint),
		"cash_mint":    derived(set.CashMint),
		"scash_mint":   derived(set.ScashMint),
		"base_custody": derived(set.BaseCustody),
		"cash_custody": derived(set.CashCustody),
	}

	if raw := q.Get("lender"); raw != "" {
		lender, err := pubkeyParam(raw, "lender")
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		ls, err := d.LenderSet(set, lender)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp["lender"] = map[string]any{
			"authority":     derived(ls.Authority),
			"receipt_slot":  derived(ls.ReceiptSlot),
			"base_account":  derived(ls.BaseAccount),
			"cash_account":  derived(ls.CashAccount),
			"scash_account": derived(ls.ScashAccount),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type submitRequest struct {
	// Transaction is the base64 encoding of a signed transaction.
	Transaction string `json:"transaction"`
	Simulate    bool   `json:"simulate"`
}

type receiptResponse struct {
	Signature string   `json:"signature"`
	Slot      uint64   `json:"slot"`
	Committed bool     `json:"committed"`
	Logs      []string `json:"logs"`
	Error     string   `json:"error,omitempty"`
	Code      string   `json:"code,omitempty"`
}

func newReceiptResponse(receipt *runtime.Receipt) receiptResponse {
	resp := receiptResponse{
		Signature: receipt.Signature.String(),
		Slot:      receipt.Slot,
		Committed: receipt.Committed,
		Logs:      receipt.Logs,
	}
	if receipt.Err != nil {
		resp.Error = receipt.Err.Error()
		resp.Code = cerrors.CodeOf(receipt.Err)
	}
	return resp
}

func (s *Server) submitTransaction(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	body := http.MaxBytesReader(w, r.Body, requestLimit)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeBadRequest(w, fmt.Errorf("decode request: %w", err))
		return
	}
	tx, err := runtime.TransactionFromBase64(strings.TrimSpace(req.Transaction))
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	rt := s.node.Runtime()
	submit := rt.Submit
	if req.Simulate {
		submit = rt.Simulate
	}
	receipt, err := submit(r.Context(), tx)
	if receipt == nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	writeJSON(w, status, newReceiptResponse(receipt))
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	sig, err := solana.SignatureFromBase58(chi.URLParam(r, "signature"))
	if err != nil {
		writeBadRequest(w, fmt.Errorf("invalid signature: %w", err))
		return
	}
	ctx := r.Context()

	if repo := s.node.Repository(); repo != nil {
		tx, err := repo.Transactions().FindBySignature(ctx, sig.String())
		if err != nil {
			writeInternalError(w, err)
			return
		}
		if tx != nil {
			instructions, err := repo.Instructions().FindBySignature(ctx, tx.Signature)
			if err != nil {
				writeInternalError(w, err)
				return
			}
			events, err := repo.Events().FindBySignature(ctx, tx.Signature)
			if err != nil {
				writeInternalError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"transaction":  tx,
				"instructions": instructions,
				"events":       events,
			})
			return
		}
	}

	// Without a journal only the commit slot is known.
	slot, ok, err := s.node.Ledger().SignatureSlot(sig)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Errorf("transaction %s not found", sig))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"signature": sig.String(),
		"slot":      slot,
		"committed": true,
	})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	repo := s.node.Repository()
	if repo == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("journal is disabled"))
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	events, err := repo.Events().FindByEventName(r.Context(), chi.URLParam(r, "name"), limit, offset)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if events == nil {
		events = []*storage.EventModel{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func pageParams(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageLimit
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", raw)
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", raw)
		}
	}
	return limit, offset, nil
}

func pubkeyParam(raw, name string) (types.Pubkey, error) {
	if raw == "" {
		return types.Pubkey{}, fmt.Errorf("missing %s", name)
	}
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return key, nil
}

// statusFor maps a coded error to an HTTP status.
func statusFor(err error) int {
	if cerrors.Is(err, cerrors.ErrAccountNotFound) {
		return http.StatusNotFound
	}
	switch cerrors.KindOf(err) {
	case cerrors.KindValidation, cerrors.KindDerivation:
		return http.StatusUnprocessableEntity
	case cerrors.KindAuthority:
		return http.StatusForbidden
	case cerrors.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.GetLogger().Error("request failed", "error", err)
	}
	writeJSONError(w, status, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusInternalServerError, err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	body := map[string]string{"error": message}
	if code := cerrors.CodeOf(err); code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}
