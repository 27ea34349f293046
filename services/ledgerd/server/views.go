package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"solaire/services/ledgerd/index"
)

func (s *Server) mountViews(r chi.Router) {
	r.Get("/accounts/{addr}/native", s.handleNativeBalance)
	r.Get("/deposits/{addr}", s.handleDeposits)
	r.Get("/compliance/{addr}", s.handleCompliance)
	r.Get("/roles", s.handleHasRole)

	r.Get("/tokens", s.handleTokens)
	r.Get("/tokens/{symbol}", s.handleTokenInfo)
	r.Get("/tokens/{symbol}/balances/{addr}", s.handleBalance)
	r.Get("/tokens/{symbol}/allowances/{owner}/{spender}", s.handleAllowance)
	r.Get("/tokens/{symbol}/iso20022/{seq}", s.handleISO20022)
	r.Get("/tokens/{symbol}/iban/{addr}", s.handleIBAN)
	r.Get("/tokens/{symbol}/bars/{id}", s.handleGoldBar)
	r.Get("/tokens/{symbol}/owners/{addr}/bars", s.handleOwnedBars)

	r.Get("/swap/quote", s.handleQuote)
	r.Get("/swap/parameters", s.handleSwapParameters)

	r.Get("/governance/proxies", s.handleProxies)
	r.Get("/governance/proxies/{id}", s.handleProxy)

	r.Get("/vault/total", s.handleTotalDeposits)
	r.Get("/vault/required", s.handleRequired)

	r.Get("/oracle/price", s.handlePrice)
	r.Get("/oracle/rounds/{id}", s.handleRound)

	r.Get("/events", s.handleEvents)
	r.Get("/events/ws", s.handleEventStream)
}

func (s *Server) handleNativeBalance(w http.ResponseWriter, r *http.Request) {
	acct, err := parseAccount("addr", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	bal, err := s.ledger.NativeBalance(acct)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"account": addressString(acct), "balance": amountString(bal)})
}

func (s *Server) handleDeposits(w http.ResponseWriter, r *http.Request) {
	acct, err := parseAccount("addr", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	deposit, err := s.ledger.Deposits(acct)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"account": addressString(acct), "deposit": amountString(deposit)})
}

type complianceResponse struct {
	Account       string `json:"account"`
	Whitelisted   bool   `json:"whitelisted"`
	Blacklisted   bool   `json:"blacklisted"`
	EMRTCompliant bool   `json:"emrtCompliant"`
	KYCLevel      uint8  `json:"kycLevel"`
	KYCExpiry     int64  `json:"kycExpiry"`
	KYCVerified   bool   `json:"kycVerified"`
	DailyLimit    string `json:"dailyLimit"`
	Used          string `json:"used"`
	WindowStart   int64  `json:"windowStart"`
}

func unix(ts time.Time) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.Unix()
}

func (s *Server) handleCompliance(w http.ResponseWriter, r *http.Request) {
	acct, err := parseAccount("addr", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	status, err := s.ledger.ComplianceStatus(acct)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, complianceResponse{
		Account:       addressString(acct),
		Whitelisted:   status.Whitelisted,
		Blacklisted:   status.Blacklisted,
		EMRTCompliant: status.EMRTCompliant,
		KYCLevel:      status.KYCLevel,
		KYCExpiry:     unix(status.KYCExpiry),
		KYCVerified:   status.KYCVerified,
		DailyLimit:    amountString(status.DailyLimit),
		Used:          amountString(status.Used),
		WindowStart:   unix(status.WindowStart),
	})
}

func (s *Server) handleHasRole(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	acct, err := parseAccount("account", q.Get("account"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	ok, err := s.ledger.HasRole(q.Get("scope"), q.Get("role"), acct)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"scope":   q.Get("scope"),
		"role":    q.Get("role"),
		"account": addressString(acct),
		"granted": ok,
	})
}

type tokenResponse struct {
	Symbol          string `json:"symbol"`
	Name            string `json:"name"`
	Currency        string `json:"currency"`
	Kind            string `json:"kind"`
	Decimals        uint8  `json:"decimals"`
	MinTransfer     string `json:"minTransfer"`
	TotalSupply     string `json:"totalSupply"`
	Collateral      string `json:"collateral"`
	CollateralRatio string `json:"collateralRatio"`
	Paused          bool   `json:"paused"`
	Swappable       bool   `json:"swappable"`
	VaultPayout     bool   `json:"vaultPayout"`
}

func (s *Server) tokenResponse(symbol string) (tokenResponse, error) {
	info, err := s.ledger.TokenInfo(symbol)
	if err != nil {
		return tokenResponse{}, err
	}
	return tokenResponse{
		Symbol:          info.Symbol,
		Name:            info.Name,
		Currency:        info.Currency,
		Kind:            string(info.Kind),
		Decimals:        info.Decimals,
		MinTransfer:     amountString(info.MinTransfer),
		TotalSupply:     amountString(info.TotalSupply),
		Collateral:      amountString(info.Collateral),
		CollateralRatio: amountString(info.CollateralRatio),
		Paused:          info.Paused,
		Swappable:       info.Swappable,
		VaultPayout:     info.VaultPayout,
	}, nil
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	symbols := s.ledger.Symbols()
	out := make([]tokenResponse, 0, len(symbols))
	for _, symbol := range symbols {
		info, err := s.tokenResponse(symbol)
		if err != nil {
			s.writeError(w, err)
			return
		}
		out = append(out, info)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.tokenResponse(symbolParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	acct, err := parseAccount("addr", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	bal, err := s.ledger.BalanceOf(symbolParam(r), acct)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"token":   symbolParam(r),
		"account": addressString(acct),
		"balance": amountString(bal),
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAccount("owner", chi.URLParam(r, "owner"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	spender, err := parseAccount("spender", chi.URLParam(r, "spender"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	allowance, err := s.ledger.Allowance(symbolParam(r), owner, spender)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"token":     symbolParam(r),
		"owner":     addressString(owner),
		"spender":   addressString(spender),
		"allowance": amountString(allowance),
	})
}

func (s *Server) handleISO20022(w http.ResponseWriter, r *http.Request) {
	seq, err := parseUint("seq", chi.URLParam(r, "seq"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	msg, ok, err := s.ledger.ISO20022Message(symbolParam(r), seq)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		http.Error(w, "message not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sequence":  msg.Sequence,
		"from":      addressString(msg.From),
		"to":        addressString(msg.To),
		"amount":    amountString(msg.Amount),
		"messageId": msg.MessageID,
		"purpose":   msg.Purpose,
		"timestamp": msg.Timestamp,
	})
}

func (s *Server) handleIBAN(w http.ResponseWriter, r *http.Request) {
	acct, err := parseAccount("addr", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	iban, err := s.ledger.IBAN(symbolParam(r), acct)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"account": addressString(acct), "iban": iban})
}

func (s *Server) handleGoldBar(w http.ResponseWriter, r *http.Request) {
	id, err := parseUint("id", chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	bar, err := s.ledger.GoldBar(symbolParam(r), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":       bar.ID,
		"serial":   bar.Serial,
		"weight":   bar.Weight,
		"refinery": bar.Refinery,
		"purity":   bar.Purity,
		"location": bar.Location,
		"active":   bar.Active,
		"owner":    addressString(bar.Owner),
		"addedAt":  bar.AddedAt,
	})
}

func (s *Server) handleOwnedBars(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAccount("addr", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	ids, err := s.ledger.OwnedBars(symbolParam(r), owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"owner": addressString(owner), "bars": ids})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amountIn, err := parseAmount("amount", q.Get("amount"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	tokenIn := strings.ToUpper(q.Get("in"))
	tokenOut := strings.ToUpper(q.Get("out"))
	expected, minOut, err := s.ledger.Quote(tokenIn, tokenOut, amountIn)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"tokenIn":     tokenIn,
		"tokenOut":    tokenOut,
		"amountIn":    amountString(amountIn),
		"expectedOut": amountString(expected),
		"minOut":      amountString(minOut),
	})
}

func (s *Server) handleSwapParameters(w http.ResponseWriter, r *http.Request) {
	params, err := s.ledger.SwapParameters()
	if err != nil {
		s.writeError(w, err)
		return
	}
	tokens := params.Tokens
	if tokens == nil {
		tokens = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"feeBps":         params.FeeBps,
		"maxSlippageBps": params.MaxSlippageBps,
		"tokens":         tokens,
		"paused":         params.Paused,
	})
}

func (s *Server) handleProxies(w http.ResponseWriter, r *http.Request) {
	ids, err := s.ledger.Proxies()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"proxies": ids, "paused": s.ledger.GlobalPaused()})
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	proxy, err := s.ledger.Proxy(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := map[string]any{
		"id":             proxy.ID,
		"implementation": proxy.Implementation,
		"version":        proxy.Version,
		"status":         proxy.Status().StatusString(),
	}
	if proxy.Pending != nil {
		out["pendingImplementation"] = proxy.Pending.Implementation
		out["requestedAt"] = proxy.Pending.RequestedAt.Unix()
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTotalDeposits(w http.ResponseWriter, r *http.Request) {
	total, err := s.ledger.TotalDeposits()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"total": amountString(total)})
}

func (s *Server) handleRequired(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := parseAmount("amount", q.Get("amount"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	symbol := strings.ToUpper(q.Get("token"))
	required, err := s.ledger.RequiredNative(symbol, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"token":    symbol,
		"amount":   amountString(amount),
		"required": amountString(required),
	})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	reading, err := s.ledger.Price()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"price":     amountString(reading.Price),
		"decimals":  reading.Decimals,
		"timestamp": unix(reading.Timestamp),
		"roundId":   reading.RoundID,
	})
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	id, err := parseUint("id", chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	round, err := s.ledger.RoundData(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"roundId":         round.RoundID,
		"answer":          amountString(round.Answer),
		"startedAt":       unix(round.StartedAt),
		"updatedAt":       unix(round.UpdatedAt),
		"answeredInRound": round.AnsweredInRound,
	})
}

type eventResponse struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Account    string            `json:"account,omitempty"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  int64             `json:"createdAt"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		http.Error(w, "event index disabled", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	filter := index.Filter{Type: q.Get("type"), Account: q.Get("account")}
	if raw := q.Get("after"); raw != "" {
		after, err := parseUint("after", raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		filter.AfterSeq = after
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := parseUint("limit", raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		filter.Limit = int(limit)
	}
	records, err := s.index.Query(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, eventResponse{
			ID:         rec.ID.String(),
			Sequence:   rec.Sequence,
			Type:       rec.Type,
			Account:    rec.Account,
			Attributes: rec.Attrs(),
			CreatedAt:  rec.CreatedAt.Unix(),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}
