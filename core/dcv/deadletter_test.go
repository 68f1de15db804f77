package dcv_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/delegatedssl/platform/core/dcv"
	"github.com/delegatedssl/platform/core/domain"
	"github.com/delegatedssl/platform/core/queue"
)

type notifierFixture struct {
	store    *MockStore
	storage  *queue.MemoryStorage
	notifier *dcv.DeadLetterNotifier
}

func newNotifierFixture(t *testing.T) *notifierFixture {
	t.Helper()

	f := &notifierFixture{
		store:   new(MockStore),
		storage: queue.NewMemoryStorage(),
	}

	enq, err := queue.NewEnqueuer(f.storage)
	require.NoError(t, err)

	f.notifier, err = dcv.NewDeadLetterNotifier(f.store, enq)
	require.NoError(t, err)
	return f
}

func deadLetterFor(d *domain.Domain, jobType queue.JobType) queue.DeadLetter {
	return queue.DeadLetter{
		ID:       uuid.New(),
		JobID:    uuid.New(),
		Queue:    queue.DefaultQueueName,
		Type:     jobType,
		DomainID: d.ID,
		Attempts: 3,
		Error:    "issuance failed: acme order rejected",
		FailedAt: time.Now(),
	}
}

func TestDeadLetterNotifier_Escalation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("two operators receive one email job", func(t *testing.T) {
		t.Parallel()

		f := newNotifierFixture(t)
		d := testDomain(domain.StatusError)
		org := &domain.Organization{ID: d.OrgID, Name: "Acme Corp"}

		f.store.On("GetDomain", mock.Anything, d.ID).Return(d, nil)
		f.store.On("GetOrganization", mock.Anything, d.OrgID).Return(org, nil)
		f.store.On("ListOperators", mock.Anything, org.ID).Return([]domain.Membership{
			{OrgID: org.ID, Email: "owner@acme.test", Role: domain.RoleOwner, Status: domain.MembershipActive},
			{OrgID: org.ID, Email: "admin@acme.test", Role: domain.RoleAdmin, Status: domain.MembershipActive},
		}, nil)

		dl := deadLetterFor(d, queue.JobTypeRenewal)
		require.NoError(t, f.notifier.ProcessDeadLetter(ctx, dl))

		jobs := f.storage.Jobs()
		require.Len(t, jobs, 1)
		assert.Equal(t, queue.JobTypeSendEmail, jobs[0].Type)

		var payload dcv.SendEmailPayload
		require.NoError(t, json.Unmarshal(jobs[0].Payload, &payload))
		assert.ElementsMatch(t, []string{"owner@acme.test", "admin@acme.test"}, payload.EmailParams.To)
		assert.Contains(t, payload.EmailParams.Subject, "renewal")
		assert.Contains(t, payload.EmailParams.Subject, d.DomainName)
		assert.Contains(t, payload.EmailParams.BodyHTML, "acme order rejected")
	})

	t.Run("inactive and plain members are not notified", func(t *testing.T) {
		t.Parallel()

		f := newNotifierFixture(t)
		d := testDomain(domain.StatusError)
		org := &domain.Organization{ID: d.OrgID, Name: "Acme Corp"}

		f.store.On("GetDomain", mock.Anything, d.ID).Return(d, nil)
		f.store.On("GetOrganization", mock.Anything, d.OrgID).Return(org, nil)
		f.store.On("ListOperators", mock.Anything, org.ID).Return([]domain.Membership{
			{OrgID: org.ID, Email: "owner@acme.test", Role: domain.RoleOwner, Status: domain.MembershipActive},
			{OrgID: org.ID, Email: "former@acme.test", Role: domain.RoleAdmin, Status: domain.MembershipInactive},
			{OrgID: org.ID, Email: "dev@acme.test", Role: domain.RoleMember, Status: domain.MembershipActive},
		}, nil)

		require.NoError(t, f.notifier.ProcessDeadLetter(ctx, deadLetterFor(d, queue.JobTypeDNSCheck)))

		jobs := f.storage.Jobs()
		require.Len(t, jobs, 1)

		var payload dcv.SendEmailPayload
		require.NoError(t, json.Unmarshal(jobs[0].Payload, &payload))
		assert.Equal(t, []string{"owner@acme.test"}, payload.EmailParams.To)
	})

	t.Run("no recipients means no email job", func(t *testing.T) {
		t.Parallel()

		f := newNotifierFixture(t)
		d := testDomain(domain.StatusError)
		org := &domain.Organization{ID: d.OrgID, Name: "Acme Corp"}

		f.store.On("GetDomain", mock.Anything, d.ID).Return(d, nil)
		f.store.On("GetOrganization", mock.Anything, d.OrgID).Return(org, nil)
		f.store.On("ListOperators", mock.Anything, org.ID).Return([]domain.Membership{}, nil)

		require.NoError(t, f.notifier.ProcessDeadLetter(ctx, deadLetterFor(d, queue.JobTypeRenewal)))
		assert.Empty(t, f.storage.Jobs())
	})

	t.Run("unknown domain is logged and consumed", func(t *testing.T) {
		t.Parallel()

		f := newNotifierFixture(t)

		missing := uuid.New()
		f.store.On("GetDomain", mock.Anything, missing).Return(nil, dcv.ErrDomainNotFound)

		dl := queue.DeadLetter{ID: uuid.New(), JobID: uuid.New(), Type: queue.JobTypeRenewal, DomainID: missing}
		require.NoError(t, f.notifier.ProcessDeadLetter(ctx, dl))
		assert.Empty(t, f.storage.Jobs())
	})

	t.Run("unknown organization is logged and consumed", func(t *testing.T) {
		t.Parallel()

		f := newNotifierFixture(t)
		d := testDomain(domain.StatusError)

		f.store.On("GetDomain", mock.Anything, d.ID).Return(d, nil)
		f.store.On("GetOrganization", mock.Anything, d.OrgID).Return(nil, dcv.ErrOrganizationNotFound)

		require.NoError(t, f.notifier.ProcessDeadLetter(ctx, deadLetterFor(d, queue.JobTypeRenewal)))
		assert.Empty(t, f.storage.Jobs())
	})

	t.Run("store failure propagates for consumer logging", func(t *testing.T) {
		t.Parallel()

		f := newNotifierFixture(t)
		d := testDomain(domain.StatusError)

		f.store.On("GetDomain", mock.Anything, d.ID).Return(nil, errors.New("connection reset"))

		assert.Error(t, f.notifier.ProcessDeadLetter(ctx, deadLetterFor(d, queue.JobTypeRenewal)))
	})

	t.Run("re-claimed dead letter does not double-notify", func(t *testing.T) {
		t.Parallel()

		f := newNotifierFixture(t)
		d := testDomain(domain.StatusError)
		org := &domain.Organization{ID: d.OrgID, Name: "Acme Corp"}

		f.store.On("GetDomain", mock.Anything, d.ID).Return(d, nil)
		f.store.On("GetOrganization", mock.Anything, d.OrgID).Return(org, nil)
		f.store.On("ListOperators", mock.Anything, org.ID).Return([]domain.Membership{
			{OrgID: org.ID, Email: "owner@acme.test", Role: domain.RoleOwner, Status: domain.MembershipActive},
		}, nil)

		dl := deadLetterFor(d, queue.JobTypeRenewal)
		require.NoError(t, f.notifier.ProcessDeadLetter(ctx, dl))
		require.NoError(t, f.notifier.ProcessDeadLetter(ctx, dl))

		assert.Len(t, f.storage.Jobs(), 1)
	})
}

func TestExtractFailureReason(t *testing.T) {
	t.Parallel()

	t.Run("explicit payload error wins", func(t *testing.T) {
		t.Parallel()

		f := newNotifierFixture(t)
		d := testDomain(domain.StatusError)
		org := &domain.Organization{ID: d.OrgID, Name: "Acme Corp"}

		f.store.On("GetDomain", mock.Anything, d.ID).Return(d, nil)
		f.store.On("GetOrganization", mock.Anything, d.OrgID).Return(org, nil)
		f.store.On("ListOperators", mock.Anything, org.ID).Return([]domain.Membership{
			{OrgID: org.ID, Email: "owner@acme.test", Role: domain.RoleOwner, Status: domain.MembershipActive},
		}, nil)

		dl := deadLetterFor(d, queue.JobTypeStartIssuance)
		dl.Payload = json.RawMessage(`{"error":"CAA record forbids issuance"}`)
		require.NoError(t, f.notifier.ProcessDeadLetter(context.Background(), dl))

		var payload dcv.SendEmailPayload
		jobs := f.storage.Jobs()
		require.Len(t, jobs, 1)
		require.NoError(t, json.Unmarshal(jobs[0].Payload, &payload))
		assert.Contains(t, payload.EmailParams.BodyHTML, "CAA record forbids issuance")
	})

	t.Run("falls back to last job error then generic", func(t *testing.T) {
		t.Parallel()

		f := newNotifierFixture(t)
		d := testDomain(domain.StatusError)
		org := &domain.Organization{ID: d.OrgID, Name: "Acme Corp"}

		f.store.On("GetDomain", mock.Anything, d.ID).Return(d, nil)
		f.store.On("GetOrganization", mock.Anything, d.OrgID).Return(org, nil)
		f.store.On("ListOperators", mock.Anything, org.ID).Return([]domain.Membership{
			{OrgID: org.ID, Email: "owner@acme.test", Role: domain.RoleOwner, Status: domain.MembershipActive},
		}, nil)

		dl := deadLetterFor(d, queue.JobTypeRenewal)
		dl.Error = ""
		require.NoError(t, f.notifier.ProcessDeadLetter(context.Background(), dl))

		var payload dcv.SendEmailPayload
		jobs := f.storage.Jobs()
		require.Len(t, jobs, 1)
		require.NoError(t, json.Unmarshal(jobs[0].Payload, &payload))
		assert.Contains(t, payload.EmailParams.BodyHTML, "no recorded error")
	})
}
