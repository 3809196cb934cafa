package compensation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

func newService() *Service {
	return NewService(clock.Fixed("2025-01-01T00:00:00Z"), ledger.NewStream("compensation"))
}

func TestOpenRequiresSignedCompensationReceipt(t *testing.T) {
	svc := newService()

	_, err := svc.Open(OpenRequest{CaseID: "case_1", Receipt: Receipt{ReceiptID: "r1", SignatureValid: false, CompensationRequired: true}})
	require.NotNil(t, err)
	assert.Equal(t, ReasonReceiptSignatureInvalid, err.Reason())

	_, err = svc.Open(OpenRequest{CaseID: "case_1", Receipt: Receipt{ReceiptID: "r1", SignatureValid: true, CompensationRequired: false}})
	require.NotNil(t, err)
	assert.Equal(t, ReasonCompensationNotRequired, err.Reason())

	c, err := svc.Open(OpenRequest{CaseID: "case_1", Receipt: Receipt{ReceiptID: "r1", SignatureValid: true, CompensationRequired: true}})
	require.Nil(t, err)
	assert.Equal(t, StatusOpen, c.Status)
}

func TestStateMachineRejectsOutOfDAGTransitions(t *testing.T) {
	svc := newService()
	_, err := svc.Open(OpenRequest{CaseID: "case_1", Receipt: Receipt{ReceiptID: "r1", SignatureValid: true, CompensationRequired: true}})
	require.Nil(t, err)

	// Cannot resolve directly from open.
	_, err = svc.Resolve(TransitionRequest{CaseID: "case_1", Resolution: "paid"})
	require.NotNil(t, err)
	assert.Equal(t, ReasonInvalidTransition, err.Reason())

	c, err := svc.Approve(TransitionRequest{CaseID: "case_1"})
	require.Nil(t, err)
	assert.Equal(t, StatusApproved, c.Status)

	// Cannot reject an already-approved case.
	_, err = svc.Reject(TransitionRequest{CaseID: "case_1"})
	require.NotNil(t, err)
	assert.Equal(t, ReasonInvalidTransition, err.Reason())

	c, err = svc.Resolve(TransitionRequest{CaseID: "case_1", Resolution: "paid"})
	require.Nil(t, err)
	assert.Equal(t, StatusResolved, c.Status)
	assert.Equal(t, "paid", c.Resolution)

	_, err = svc.Resolve(TransitionRequest{CaseID: "case_1", Resolution: "paid-again"})
	require.NotNil(t, err)
	assert.Equal(t, ReasonInvalidTransition, err.Reason())
}

func TestRejectedCaseCanAlsoBeResolved(t *testing.T) {
	svc := newService()
	_, err := svc.Open(OpenRequest{CaseID: "case_1", Receipt: Receipt{ReceiptID: "r1", SignatureValid: true, CompensationRequired: true}})
	require.Nil(t, err)
	_, err = svc.Reject(TransitionRequest{CaseID: "case_1"})
	require.Nil(t, err)
	c, err := svc.Resolve(TransitionRequest{CaseID: "case_1", Resolution: "no-payout"})
	require.Nil(t, err)
	assert.Equal(t, StatusResolved, c.Status)
}
