package rest

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/tsswallet/tss-wallet/engine/wallet"
	"github.com/tsswallet/tss-wallet/model/tss"
	moduletss "github.com/tsswallet/tss-wallet/module/tss"
)

// API is the wallet surface exposed over http. It is implemented by
// *wallet.Registry.
type API interface {
	GenerateKeys(ctx context.Context, regenerate bool) (*wallet.KeyInfo, error)
	RunAuxInfo(ctx context.Context) error
	RunPresign(ctx context.Context, index uint32) error
	ListKeys() ([]wallet.KeyInfo, error)
	DeriveChild(index *uint32, label string, overwrite bool) (*wallet.KeyInfo, error)
	Sign(ctx context.Context, message []byte, index uint32) (*wallet.SignResult, error)
	Verify(message []byte, signature *tss.Signature, index uint32) (bool, error)
	DeleteChild(index uint32) error
	DeleteAll() error
	Status() (*wallet.Status, error)
	StartGenerate(regenerate bool) (string, error)
	StartSign(message []byte, index uint32) (string, error)
	Job(id string) (moduletss.Job, error)
	CancelJob(id string) error
}

var _ API = (*wallet.Registry)(nil)

type route struct {
	name    string
	method  string
	pattern string
	status  int
	handler func(*routes, *Request) (interface{}, error)
}

var walletRoutes = []route{{
	method:  http.MethodPost,
	pattern: "/keygen",
	name:    "generateKeys",
	status:  http.StatusCreated,
	handler: (*routes).generateKeys,
}, {
	method:  http.MethodPost,
	pattern: "/auxinfo",
	name:    "runAuxInfo",
	handler: (*routes).runAuxInfo,
}, {
	method:  http.MethodPost,
	pattern: "/presign",
	name:    "runPresign",
	handler: (*routes).runPresign,
}, {
	method:  http.MethodPost,
	pattern: "/sign",
	name:    "sign",
	handler: (*routes).sign,
}, {
	method:  http.MethodPost,
	pattern: "/verify",
	name:    "verify",
	handler: (*routes).verify,
}, {
	method:  http.MethodPost,
	pattern: "/derive",
	name:    "deriveChild",
	status:  http.StatusCreated,
	handler: (*routes).deriveChild,
}, {
	method:  http.MethodGet,
	pattern: "/keys",
	name:    "listKeys",
	handler: (*routes).listKeys,
}, {
	method:  http.MethodDelete,
	pattern: "/keys",
	name:    "deleteAll",
	handler: (*routes).deleteAll,
}, {
	method:  http.MethodDelete,
	pattern: "/keys/{index}",
	name:    "deleteChild",
	handler: (*routes).deleteChild,
}, {
	method:  http.MethodGet,
	pattern: "/status",
	name:    "getStatus",
	handler: (*routes).status,
}, {
	method:  http.MethodGet,
	pattern: "/dashboard",
	name:    "getDashboard",
	handler: (*routes).dashboard,
}, {
	method:  http.MethodPost,
	pattern: "/jobs/keygen",
	name:    "startGenerate",
	status:  http.StatusAccepted,
	handler: (*routes).startGenerate,
}, {
	method:  http.MethodPost,
	pattern: "/jobs/sign",
	name:    "startSign",
	status:  http.StatusAccepted,
	handler: (*routes).startSign,
}, {
	method:  http.MethodGet,
	pattern: "/jobs/{id}",
	name:    "getJob",
	handler: (*routes).getJob,
}, {
	method:  http.MethodDelete,
	pattern: "/jobs/{id}",
	name:    "cancelJob",
	handler: (*routes).cancelJob,
}}

// routes holds the dependencies shared by the wallet handlers.
type routes struct {
	api        API
	signatures *signatureCache
}

func (rt *routes) generateKeys(r *Request) (interface{}, error) {
	var req GenerateRequest
	if err := r.Decode(&req); err != nil {
		return nil, NewBadRequestError(err)
	}

	info, err := rt.api.GenerateKeys(r.Context(), req.Regenerate)
	if err != nil {
		return nil, err
	}
	if req.Regenerate {
		rt.signatures.Remove(0, true)
	}

	var key Key
	key.Build(info)
	return key, nil
}

func (rt *routes) runAuxInfo(r *Request) (interface{}, error) {
	err := rt.api.RunAuxInfo(r.Context())
	if err != nil {
		return nil, err
	}
	return rt.status(r)
}

func (rt *routes) runPresign(r *Request) (interface{}, error) {
	var req PresignRequest
	if err := r.Decode(&req); err != nil {
		return nil, NewBadRequestError(err)
	}

	err := rt.api.RunPresign(r.Context(), req.KeyIndex)
	if err != nil {
		return nil, err
	}
	return rt.status(r)
}

func (rt *routes) sign(r *Request) (interface{}, error) {
	var req SignRequest
	if err := r.Decode(&req); err != nil {
		return nil, NewBadRequestError(err)
	}

	result, err := rt.api.Sign(r.Context(), []byte(req.Message), req.KeyIndex)
	if err != nil {
		return nil, err
	}
	rt.signatures.Add(result.Index, result.Signature)

	var sig Signature
	sig.Build(result)
	return sig, nil
}

func (rt *routes) verify(r *Request) (interface{}, error) {
	var req VerifyRequest
	if err := r.Decode(&req); err != nil {
		return nil, NewBadRequestError(err)
	}

	var signature *tss.Signature
	if req.SignatureHex == "" {
		cached, ok := rt.signatures.Get(req.KeyIndex)
		if !ok {
			return nil, NewRestError(http.StatusNotFound,
				fmt.Sprintf("no signature recorded for key %d", req.KeyIndex),
				errors.New("signature not cached"))
		}
		signature = cached
	} else {
		raw, err := hex.DecodeString(req.SignatureHex)
		if err != nil {
			return nil, NewBadRequestError(fmt.Errorf("invalid signature_hex: %w", err))
		}
		signature, err = tss.SignatureFromBytes(raw)
		if err != nil {
			return nil, NewBadRequestError(err)
		}
	}

	valid, err := rt.api.Verify([]byte(req.Message), signature, req.KeyIndex)
	if err != nil {
		return nil, err
	}

	return Verification{
		KeyIndex:     req.KeyIndex,
		SignatureHex: signature.String(),
		Valid:        valid,
	}, nil
}

func (rt *routes) deriveChild(r *Request) (interface{}, error) {
	var req DeriveRequest
	if err := r.Decode(&req); err != nil {
		return nil, NewBadRequestError(err)
	}

	info, err := rt.api.DeriveChild(req.Index, req.Label, req.Overwrite)
	if err != nil {
		return nil, err
	}
	// an overwritten child has a new public key
	rt.signatures.Remove(info.Index, false)

	var key Key
	key.Build(info)
	return key, nil
}

func (rt *routes) listKeys(r *Request) (interface{}, error) {
	infos, err := rt.api.ListKeys()
	if err != nil {
		return nil, err
	}

	keys := make([]Key, len(infos))
	for i := range infos {
		keys[i].Build(&infos[i])
	}
	return keys, nil
}

func (rt *routes) deleteAll(r *Request) (interface{}, error) {
	err := rt.api.DeleteAll()
	if err != nil {
		return nil, err
	}
	rt.signatures.Remove(0, true)
	return rt.status(r)
}

func (rt *routes) deleteChild(r *Request) (interface{}, error) {
	index, err := r.GetIndex("index")
	if err != nil {
		return nil, NewBadRequestError(err)
	}

	err = rt.api.DeleteChild(index)
	if err != nil {
		return nil, err
	}
	rt.signatures.Remove(index, false)
	return rt.listKeys(r)
}

func (rt *routes) status(r *Request) (interface{}, error) {
	status, err := rt.api.Status()
	if err != nil {
		return nil, err
	}

	var response Status
	response.Build(status)
	return response, nil
}

func (rt *routes) dashboard(r *Request) (interface{}, error) {
	status, err := rt.api.Status()
	if err != nil {
		return nil, err
	}

	var built Status
	built.Build(status)

	keys := 0
	if status.Exists {
		keys = 1 + status.ChildKeys
	}
	return Dashboard{
		Exists:                 status.Exists,
		Keys:                   keys,
		Phases:                 built.Phases,
		PresignaturesAvailable: len(status.Presignatures),
		CachedSignatures:       rt.signatures.Len(),
	}, nil
}

func (rt *routes) startGenerate(r *Request) (interface{}, error) {
	var req GenerateRequest
	if err := r.Decode(&req); err != nil {
		return nil, NewBadRequestError(err)
	}

	id, err := rt.api.StartGenerate(req.Regenerate)
	if err != nil {
		return nil, err
	}
	return rt.job(id)
}

func (rt *routes) startSign(r *Request) (interface{}, error) {
	var req SignRequest
	if err := r.Decode(&req); err != nil {
		return nil, NewBadRequestError(err)
	}

	id, err := rt.api.StartSign([]byte(req.Message), req.KeyIndex)
	if err != nil {
		return nil, err
	}
	return rt.job(id)
}

func (rt *routes) getJob(r *Request) (interface{}, error) {
	return rt.job(r.GetVar("id"))
}

func (rt *routes) cancelJob(r *Request) (interface{}, error) {
	id := r.GetVar("id")
	err := rt.api.CancelJob(id)
	if err != nil {
		return nil, err
	}
	return rt.job(id)
}

func (rt *routes) job(id string) (interface{}, error) {
	job, err := rt.api.Job(id)
	if err != nil {
		return nil, err
	}
	if job.Status == moduletss.JobSucceeded {
		if result, ok := job.Result.(*wallet.SignResult); ok {
			rt.signatures.Add(result.Index, result.Signature)
		}
	}

	var response Job
	response.Build(job)
	return response, nil
}
