package rpc

import (
	"encoding/hex"
	"net/http"

	"merkledrop/crypto"
)

type createParams struct {
	From     string `json:"from"`
	Owner    string `json:"owner"`
	Timelock uint64 `json:"timelock"`
	Root     string `json:"root"`
	IPFSHash string `json:"ipfsHash"`
	Salt     string `json:"salt"`
}

type rootParams struct {
	From     string `json:"from"`
	ID       string `json:"id"`
	Root     string `json:"root"`
	IPFSHash string `json:"ipfsHash"`
}

type idParams struct {
	ID string `json:"id"`
}

type ownerIDParams struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

type timelockParams struct {
	From     string `json:"from"`
	ID       string `json:"id"`
	Timelock uint64 `json:"timelock"`
}

type updaterParams struct {
	From    string `json:"from"`
	ID      string `json:"id"`
	Updater string `json:"updater"`
	Active  bool   `json:"active"`
}

type setOwnerParams struct {
	From     string `json:"from"`
	ID       string `json:"id"`
	NewOwner string `json:"newOwner"`
}

type claimParams struct {
	ID         string   `json:"id"`
	Account    string   `json:"account"`
	Token      string   `json:"token"`
	Cumulative string   `json:"cumulative"`
	Proof      []string `json:"proof"`
}

type claimedParams struct {
	ID      string `json:"id"`
	Account string `json:"account"`
	Token   string `json:"token"`
}

type createResponse struct {
	ID string `json:"id"`
}

type ackResponse struct {
	OK bool `json:"ok"`
}

type claimResponse struct {
	Paid string `json:"paid"`
}

type pendingRootView struct {
	Root        string `json:"root"`
	IPFSHash    string `json:"ipfsHash"`
	SubmittedAt int64  `json:"submittedAt"`
}

type distributorView struct {
	ID       string           `json:"id"`
	Owner    string           `json:"owner"`
	Timelock uint64           `json:"timelock"`
	Root     string           `json:"root"`
	IPFSHash string           `json:"ipfsHash"`
	Pending  *pendingRootView `json:"pending,omitempty"`
}

type claimedResponse struct {
	Claimed string `json:"claimed"`
}

func addressString(addr [20]byte) string {
	return crypto.NewAddress(crypto.RewardPrefix, addr[:]).String()
}

func (s *Server) handleDistributorCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params createParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := decodeBech32(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return
	}
	owner, err := decodeBech32(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid owner address", err.Error())
		return
	}
	root, err := decodeHash32(params.Root)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid root", err.Error())
		return
	}
	ipfsHash, err := decodeHash32(params.IPFSHash)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid ipfsHash", err.Error())
		return
	}
	salt, err := decodeHash32(params.Salt)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid salt", err.Error())
		return
	}
	id, err := s.engine.CreateDistributor(caller, owner, params.Timelock, root, ipfsHash, salt)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, createResponse{ID: addressString(id)})
}

func (s *Server) handleProposeRoot(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params rootParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, id, root, ipfsHash, rpcErr := decodeRootArgs(params)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if err := s.engine.ProposeRoot(caller, id, root, ipfsHash); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, ackResponse{OK: true})
}

func (s *Server) handleAcceptRoot(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	// Finalisation is permissionless; it is only rate limited.
	if !s.allowOpen(r) {
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}
	var params idParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	id, err := decodeBech32(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid id", err.Error())
		return
	}
	if err := s.engine.AcceptRootUpdate(id); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, ackResponse{OK: true})
}

func (s *Server) handleForceUpdateRoot(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params rootParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, id, root, ipfsHash, rpcErr := decodeRootArgs(params)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	if err := s.engine.ForceUpdateRoot(caller, id, root, ipfsHash); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, ackResponse{OK: true})
}

func (s *Server) handleRevokePendingRoot(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params ownerIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := decodeBech32(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return
	}
	id, err := decodeBech32(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid id", err.Error())
		return
	}
	if err := s.engine.RevokePendingRoot(caller, id); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, ackResponse{OK: true})
}

func (s *Server) handleUpdateTimelock(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params timelockParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := decodeBech32(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return
	}
	id, err := decodeBech32(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid id", err.Error())
		return
	}
	if err := s.engine.UpdateTimelock(caller, id, params.Timelock); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, ackResponse{OK: true})
}

func (s *Server) handleUpdateRootUpdater(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params updaterParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := decodeBech32(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return
	}
	id, err := decodeBech32(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid id", err.Error())
		return
	}
	updater, err := decodeBech32(params.Updater)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid updater address", err.Error())
		return
	}
	if err := s.engine.UpdateRootUpdater(caller, id, updater, params.Active); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, ackResponse{OK: true})
}

func (s *Server) handleSetOwner(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params setOwnerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	caller, err := decodeBech32(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid from address", err.Error())
		return
	}
	id, err := decodeBech32(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid id", err.Error())
		return
	}
	newOwner, err := decodeBech32(params.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid newOwner address", err.Error())
		return
	}
	if err := s.engine.SetDistributionOwner(caller, id, newOwner); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, ackResponse{OK: true})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	// Claims are open to any recipient holding a proof.
	if !s.allowOpen(r) {
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}
	var params claimParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	id, err := decodeBech32(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid id", err.Error())
		return
	}
	account, err := decodeBech32(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account address", err.Error())
		return
	}
	cumulative, err := parsePositiveAmount(params.Cumulative)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	proof, err := decodeProof(params.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	paid, err := s.engine.Claim(id, account, params.Token, cumulative, proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, claimResponse{Paid: paid.String()})
}

func (s *Server) handleDistributorGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params idParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	id, err := decodeBech32(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid id", err.Error())
		return
	}
	dist, err := s.engine.Distributor(id)
	if err != nil {
		writeError(w, http.StatusNotFound, req.ID, codeServerError, err.Error(), nil)
		return
	}
	view := distributorView{
		ID:       addressString(id),
		Owner:    addressString(dist.Owner),
		Timelock: dist.Timelock,
		Root:     hex.EncodeToString(dist.Root[:]),
		IPFSHash: hex.EncodeToString(dist.IPFSHash[:]),
	}
	if dist.Pending != nil {
		view.Pending = &pendingRootView{
			Root:        hex.EncodeToString(dist.Pending.Root[:]),
			IPFSHash:    hex.EncodeToString(dist.Pending.IPFSHash[:]),
			SubmittedAt: dist.Pending.SubmittedAt,
		}
	}
	writeResult(w, req.ID, view)
}

func (s *Server) handleClaimed(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params claimedParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	id, err := decodeBech32(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid id", err.Error())
		return
	}
	account, err := decodeBech32(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account address", err.Error())
		return
	}
	claimed, err := s.engine.Claimed(id, account, params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, claimedResponse{Claimed: claimed.String()})
}

func decodeRootArgs(params rootParams) (caller, id [20]byte, root, ipfsHash [32]byte, rpcErr *RPCError) {
	var err error
	if caller, err = decodeBech32(params.From); err != nil {
		return caller, id, root, ipfsHash, &RPCError{Code: codeInvalidParams, Message: "invalid from address", Data: err.Error()}
	}
	if id, err = decodeBech32(params.ID); err != nil {
		return caller, id, root, ipfsHash, &RPCError{Code: codeInvalidParams, Message: "invalid id", Data: err.Error()}
	}
	if root, err = decodeHash32(params.Root); err != nil {
		return caller, id, root, ipfsHash, &RPCError{Code: codeInvalidParams, Message: "invalid root", Data: err.Error()}
	}
	if ipfsHash, err = decodeHash32(params.IPFSHash); err != nil {
		return caller, id, root, ipfsHash, &RPCError{Code: codeInvalidParams, Message: "invalid ipfsHash", Data: err.Error()}
	}
	return caller, id, root, ipfsHash, nil
}
