package policyprovider

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"voyago/core-api/internal/infrastructure/logger"
)

// maxPolicyNameLength mirrors PolicyNet's PNET_MAX_POLICY_NAME_LENGTH.
const maxPolicyNameLength = 64

// stubProvider is a head-end stand-in: it accepts every call, fabricates a
// policy id, and logs what a real SOAP client would have sent. It exists so
// the rest of the engine (dispatcher, state machines) has something to run
// against without a live PolicyNet endpoint, matching the abstract,
// out-of-scope status of the real head-end client.
type stubProvider struct {
	log      logger.Logger
	mu       sync.Mutex
	policies map[int64]bool // policyID -> deployed
	sessions int
}

func NewStubProvider(log logger.Logger) PolicyProvider {
	return &stubProvider{
		log:      log.WithField("component", "policyprovider"),
		policies: make(map[int64]bool),
	}
}

func (p *stubProvider) Create(ctx context.Context, req CreateRequest) (string, Result, error) {
	action := "ON"
	if req.TurnOff {
		action = "OFF"
	}

	name := fmt.Sprintf("DLCOverride(%s)-%s-%d", action, strings.Join(req.MeterSerials, "-"), time.Now().Unix())
	if len(name) > maxPolicyNameLength {
		name = name[:maxPolicyNameLength]
	}

	policyID := p.nextPolicyID()

	p.log.WithContext(ctx).WithFields(map[string]any{
		"policy_name": name,
		"meters":      req.MeterSerials,
		"start":       req.Start,
		"duration_min": req.DurationMin,
		"replace":     req.Replace,
	}).Info("policy provider: create")

	p.mu.Lock()
	p.policies[policyID] = false
	p.mu.Unlock()

	return name, Result{
		Status:   StatusOK,
		PolicyID: policyID,
		Message:  "direct load control override policy created successfully",
	}, nil
}

func (p *stubProvider) Replace(ctx context.Context, req CreateRequest) (string, Result, error) {
	req.Replace = true
	return p.Create(ctx, req)
}

func (p *stubProvider) Deploy(ctx context.Context, policyID int64) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.policies[policyID]; !ok {
		return Result{Status: 404, Message: fmt.Sprintf("policy %d not found", policyID)}, nil
	}
	p.policies[policyID] = true
	return Result{Status: StatusOK, PolicyID: policyID, Message: fmt.Sprintf("policy %d deployed successfully", policyID)}, nil
}

func (p *stubProvider) Undeploy(ctx context.Context, policyID int64) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.policies[policyID]; !ok {
		return Result{Status: 404, Message: fmt.Sprintf("policy %d not found", policyID)}, nil
	}
	p.policies[policyID] = false
	return Result{Status: StatusOK, PolicyID: policyID, Message: fmt.Sprintf("policy %d undeployed", policyID)}, nil
}

func (p *stubProvider) Delete(ctx context.Context, policyID int64) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.policies, policyID)
	return Result{Status: StatusOK, PolicyID: policyID, Message: fmt.Sprintf("policy %d deleted", policyID)}, nil
}

func (p *stubProvider) CheckExists(ctx context.Context, policyID int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.policies[policyID]
	return ok, nil
}

func (p *stubProvider) WithSession(ctx context.Context, fn func(ctx context.Context) error) error {
	p.mu.Lock()
	p.sessions++
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.sessions--
		p.mu.Unlock()
	}()
	return fn(ctx)
}

func (p *stubProvider) nextPolicyID() int64 {
	return int64(1000 + rand.Intn(9000))
}
