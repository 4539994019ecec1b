package rpc

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"merkledrop/crypto"
	"merkledrop/native/bank"
	"merkledrop/native/distributor"
	"merkledrop/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	rpcTokenEnv     = "MERKLEDROP_RPC_TOKEN"

	// Unauthenticated claim/accept traffic is throttled per source.
	openMethodRate  = rate.Limit(5)
	openMethodBurst = 10
	// openLimiterCap bounds the per-source limiter map so address-spraying
	// clients cannot grow daemon memory without limit.
	openLimiterCap = 4096
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Server exposes the distributor engine and the bank ledger over JSON-RPC.
type Server struct {
	engine *distributor.Engine
	bank   *bank.Ledger

	authToken string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer wires the RPC surface. The bearer token guarding privileged
// methods is read from the MERKLEDROP_RPC_TOKEN environment variable; when
// unset, privileged methods are rejected outright.
func NewServer(engine *distributor.Engine, ledger *bank.Ledger) *Server {
	return &Server{
		engine:    engine,
		bank:      ledger,
		authToken: strings.TrimSpace(os.Getenv(rpcTokenEnv)),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Start blocks serving JSON-RPC on addr.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	return http.ListenAndServe(addr, mux)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "rpc token not configured"}
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

func (s *Server) allowOpen(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	s.mu.Lock()
	limiter, ok := s.limiters[host]
	if !ok {
		// At capacity the whole map is dropped; established sources start
		// over with a fresh burst, which is acceptable for a cap this size.
		if len(s.limiters) >= openLimiterCap {
			s.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(openMethodRate, openMethodBurst)
		s.limiters[host] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}

	started := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.dispatch(recorder, r, &req)
	outcome := "ok"
	if recorder.status >= http.StatusBadRequest {
		outcome = "error"
	}
	observability.Metrics().RecordRequest(req.Method, outcome, time.Since(started))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "distributor_create":
		s.handleDistributorCreate(w, r, req)
	case "distributor_proposeRoot":
		s.handleProposeRoot(w, r, req)
	case "distributor_acceptRoot":
		s.handleAcceptRoot(w, r, req)
	case "distributor_forceUpdateRoot":
		s.handleForceUpdateRoot(w, r, req)
	case "distributor_revokePendingRoot":
		s.handleRevokePendingRoot(w, r, req)
	case "distributor_updateTimelock":
		s.handleUpdateTimelock(w, r, req)
	case "distributor_updateRootUpdater":
		s.handleUpdateRootUpdater(w, r, req)
	case "distributor_setOwner":
		s.handleSetOwner(w, r, req)
	case "distributor_claim":
		s.handleClaim(w, r, req)
	case "distributor_get":
		s.handleDistributorGet(w, r, req)
	case "distributor_claimed":
		s.handleClaimed(w, r, req)
	case "bank_balance":
		s.handleBankBalance(w, r, req)
	case "bank_mint":
		s.handleBankMint(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

// --- shared parameter helpers ---

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "exactly one parameter object expected"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid parameter object", Data: err.Error()}
	}
	return nil
}

func decodeBech32(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func decodeHash32(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid hex: %w", err)
	}
	if len(decoded) != 32 {
		return out, fmt.Errorf("hash must be 32 bytes (got %d)", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

func decodeProof(values []string) ([][32]byte, error) {
	proof := make([][32]byte, len(values))
	for i, value := range values {
		node, err := decodeHash32(value)
		if err != nil {
			return nil, fmt.Errorf("proof element %d: %w", i, err)
		}
		proof[i] = node
	}
	return proof, nil
}

func parsePositiveAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(strings.TrimPrefix(trimmed, "+"), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}
