package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) mountOps(r chi.Router) {
	r.Post("/roles/grant", s.handleGrantRole)
	r.Post("/roles/revoke", s.handleRevokeRole)
	r.Post("/roles/renounce", s.handleRenounceRole)

	r.Post("/governance/proxies", s.handleRegisterProxy)
	r.Post("/governance/upgrades/request", s.handleRequestUpgrade)
	r.Post("/governance/upgrades/approve", s.handleApproveUpgrade)
	r.Post("/pause", s.handlePause)
	r.Post("/unpause", s.handleUnpause)

	r.Post("/compliance/whitelist", s.handleWhitelist)
	r.Post("/compliance/blacklist", s.handleBlacklist)
	r.Post("/compliance/emrt", s.handleEMRT)
	r.Post("/compliance/kyc", s.handleKYC)
	r.Post("/compliance/transfer-limit", s.handleTransferLimit)
	r.Post("/compliance/tier-limit", s.handleTierLimit)

	r.Post("/native/transfer", s.handleNativeTransfer)

	r.Post("/tokens/{symbol}/mint", s.handleMint)
	r.Post("/tokens/{symbol}/burn", s.handleBurn)
	r.Post("/tokens/{symbol}/transfer", s.handleTransfer)
	r.Post("/tokens/{symbol}/approve", s.handleApprove)
	r.Post("/tokens/{symbol}/transfer-from", s.handleTransferFrom)
	r.Post("/tokens/{symbol}/iso20022", s.handleTransferISO20022)
	r.Post("/tokens/{symbol}/collateral", s.handleUpdateCollateral)
	r.Post("/tokens/{symbol}/iban", s.handleRegisterIBAN)
	r.Post("/tokens/{symbol}/bars", s.handleAddGoldBar)
	r.Post("/tokens/{symbol}/bars/{id}/deactivate", s.handleDeactivateGoldBar)
	r.Post("/tokens/{symbol}/bars/{id}/owner", s.handleAssignBar)

	r.Post("/vault/deposit", s.handleDeposit)
	r.Post("/vault/withdraw", s.handleWithdraw)
	r.Post("/vault/emergency-withdraw", s.handleEmergencyWithdraw)
	r.Post("/vault/stablecoins", s.handleAddVaultStablecoin)
	r.Delete("/vault/stablecoins/{symbol}", s.handleRemoveVaultStablecoin)
	r.Post("/vault/ceiling", s.handleDepositCeiling)

	r.Post("/swap", s.handleSwap)
	r.Post("/swap/tokens", s.handleAddSupportedToken)
	r.Delete("/swap/tokens/{symbol}", s.handleRemoveSupportedToken)
	r.Post("/swap/fee", s.handleSwapFee)
	r.Post("/swap/slippage", s.handleMaxSlippage)
}

func (s *Server) ok(w http.ResponseWriter, extra map[string]any) {
	out := map[string]any{"status": "ok", "root": s.ledger.Root().Hex()}
	for k, v := range extra {
		out[k] = v
	}
	s.writeJSON(w, http.StatusOK, out)
}

type roleRequest struct {
	Scope   string `json:"scope"`
	Role    string `json:"role"`
	Account string `json:"account"`
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	acct, err := parseAccount("account", req.Account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.GrantRole(caller(r), req.Scope, req.Role, acct); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	acct, err := parseAccount("account", req.Account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.RevokeRole(caller(r), req.Scope, req.Role, acct); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleRenounceRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.RenounceRole(caller(r), req.Scope, req.Role); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

type proxyRequest struct {
	ID             string `json:"id"`
	Implementation string `json:"implementation"`
}

func (s *Server) handleRegisterProxy(w http.ResponseWriter, r *http.Request) {
	var req proxyRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.RegisterProxy(caller(r), req.ID, req.Implementation); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleRequestUpgrade(w http.ResponseWriter, r *http.Request) {
	var req proxyRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.RequestUpgrade(caller(r), req.ID, req.Implementation); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleApproveUpgrade(w http.ResponseWriter, r *http.Request) {
	var req proxyRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.ApproveUpgrade(caller(r), req.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

type pauseRequest struct {
	Module string `json:"module"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, true)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, false)
}

func (s *Server) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	var req pauseRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	var err error
	if paused {
		err = s.ledger.Pause(caller(r), req.Module)
	} else {
		err = s.ledger.Unpause(caller(r), req.Module)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, map[string]any{"module": req.Module, "paused": paused})
}

type flagRequest struct {
	Account string `json:"account"`
	Value   bool   `json:"value"`
}

func (s *Server) decodeFlag(w http.ResponseWriter, r *http.Request) ([20]byte, bool, error) {
	var req flagRequest
	if err := decodeBody(w, r, &req); err != nil {
		return [20]byte{}, false, err
	}
	acct, err := parseAccount("account", req.Account)
	return acct, req.Value, err
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	acct, value, err := s.decodeFlag(w, r)
	if err == nil {
		err = s.ledger.SetWhitelisted(caller(r), acct, value)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	acct, value, err := s.decodeFlag(w, r)
	if err == nil {
		err = s.ledger.SetBlacklisted(caller(r), acct, value)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleEMRT(w http.ResponseWriter, r *http.Request) {
	acct, value, err := s.decodeFlag(w, r)
	if err == nil {
		err = s.ledger.SetEMRTCompliance(caller(r), acct, value)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

type kycRequest struct {
	Account string `json:"account"`
	Tier    uint8  `json:"tier"`
	Expiry  int64  `json:"expiry"`
}

func (s *Server) handleKYC(w http.ResponseWriter, r *http.Request) {
	var req kycRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	acct, err := parseAccount("account", req.Account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.UpdateKYCStatus(caller(r), acct, req.Tier, time.Unix(req.Expiry, 0).UTC()); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

type limitRequest struct {
	Account string `json:"account"`
	Tier    uint8  `json:"tier"`
	Limit   string `json:"limit"`
}

func (s *Server) handleTransferLimit(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	acct, err := parseAccount("account", req.Account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit, err := parseAmount("limit", req.Limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.SetTransferLimit(caller(r), acct, limit); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleTierLimit(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	limit, err := parseAmount("limit", req.Limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.SetTransactionLimit(caller(r), req.Tier, limit); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

// transferRequest covers every amount-carrying token call; unused fields are ignored.
type transferRequest struct {
	To        string `json:"to"`
	From      string `json:"from"`
	Spender   string `json:"spender"`
	Amount    string `json:"amount"`
	MessageID string `json:"messageId"`
	Purpose   string `json:"purpose"`
}

func (s *Server) decodeTransfer(w http.ResponseWriter, r *http.Request) (transferRequest, error) {
	var req transferRequest
	err := decodeBody(w, r, &req)
	return req, err
}

func (s *Server) handleNativeTransfer(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeTransfer(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.TransferNative(caller(r), to, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeTransfer(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.Mint(caller(r), symbolParam(r), to, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeTransfer(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	from, err := parseAccount("from", req.From)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.Burn(caller(r), symbolParam(r), from, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeTransfer(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.Transfer(caller(r), symbolParam(r), to, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeTransfer(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	spender, err := parseAccount("spender", req.Spender)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.Approve(caller(r), symbolParam(r), spender, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeTransfer(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	from, err := parseAccount("from", req.From)
	if err != nil {
		s.writeError(w, err)
		return
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.TransferFrom(caller(r), symbolParam(r), from, to, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleTransferISO20022(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeTransfer(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	to, err := parseAccount("to", req.To)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	seq, err := s.ledger.TransferISO20022(caller(r), symbolParam(r), to, amount, req.MessageID, req.Purpose)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, map[string]any{"sequence": seq})
}

func (s *Server) handleUpdateCollateral(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeTransfer(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.UpdateCollateral(caller(r), symbolParam(r), amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

type ibanRequest struct {
	Account string `json:"account"`
	IBAN    string `json:"iban"`
}

func (s *Server) handleRegisterIBAN(w http.ResponseWriter, r *http.Request) {
	var req ibanRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	acct, err := parseAccount("account", req.Account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.RegisterIBAN(caller(r), symbolParam(r), acct, req.IBAN); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

type goldBarRequest struct {
	Serial   string `json:"serial"`
	Weight   uint64 `json:"weight"`
	Refinery string `json:"refinery"`
	Purity   uint64 `json:"purity"`
	Location string `json:"location"`
	Owner    string `json:"owner"`
}

func (s *Server) handleAddGoldBar(w http.ResponseWriter, r *http.Request) {
	var req goldBarRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	id, err := s.ledger.AddGoldBar(caller(r), symbolParam(r), req.Serial, req.Weight, req.Refinery, req.Purity, req.Location)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, map[string]any{"id": id})
}

func (s *Server) handleDeactivateGoldBar(w http.ResponseWriter, r *http.Request) {
	id, err := parseUint("id", chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.DeactivateGoldBar(caller(r), symbolParam(r), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleAssignBar(w http.ResponseWriter, r *http.Request) {
	id, err := parseUint("id", chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req goldBarRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	owner, err := parseAccount("owner", req.Owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.AssignBarOwnership(caller(r), symbolParam(r), id, owner); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

type vaultRequest struct {
	Amount  string `json:"amount"`
	Token   string `json:"token"`
	Ceiling string `json:"ceiling"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req vaultRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.Deposit(caller(r), amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req vaultRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.WithdrawStable(caller(r), amount, strings.ToUpper(req.Token)); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	amount, err := s.ledger.EmergencyWithdraw(caller(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, map[string]any{"amount": amountString(amount)})
}

func (s *Server) handleAddVaultStablecoin(w http.ResponseWriter, r *http.Request) {
	var req vaultRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.AddVaultStablecoin(caller(r), strings.ToUpper(req.Token)); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleRemoveVaultStablecoin(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.RemoveVaultStablecoin(caller(r), symbolParam(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleDepositCeiling(w http.ResponseWriter, r *http.Request) {
	var req vaultRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	ceiling, err := parseAmount("ceiling", req.Ceiling)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.SetDepositCeiling(caller(r), ceiling); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

type swapRequest struct {
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
	AmountIn string `json:"amountIn"`
	MinOut   string `json:"minOut"`
	Token    string `json:"token"`
	Bps      uint64 `json:"bps"`
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	amountIn, err := parseAmount("amountIn", req.AmountIn)
	if err != nil {
		s.writeError(w, err)
		return
	}
	minOut, err := parseOptionalAmount("minOut", req.MinOut)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, err := s.ledger.Swap(caller(r), strings.ToUpper(req.TokenIn), strings.ToUpper(req.TokenOut), amountIn, minOut)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, map[string]any{"amountOut": amountString(out)})
}

func (s *Server) handleAddSupportedToken(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.AddSupportedToken(caller(r), strings.ToUpper(req.Token)); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleRemoveSupportedToken(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.RemoveSupportedToken(caller(r), symbolParam(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleSwapFee(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.SetSwapFee(caller(r), req.Bps); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}

func (s *Server) handleMaxSlippage(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.SetMaxSlippage(caller(r), req.Bps); err != nil {
		s.writeError(w, err)
		return
	}
	s.ok(w, nil)
}
