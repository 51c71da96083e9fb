package platform_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	platformtypes "github.com/averhoeven/roster-management/internal/core/datamodel/platform"
	"github.com/averhoeven/roster-management/internal/platform"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// MockRoleClient implements platform.RoleClient for testing
type MockRoleClient struct {
	calls       []string
	failGrants  map[string]error
	failRevokes map[string]error
	heldRoles   []platformtypes.HeldRole
}

func NewMockRoleClient() *MockRoleClient {
	return &MockRoleClient{
		failGrants:  make(map[string]error),
		failRevokes: make(map[string]error),
	}
}

func (m *MockRoleClient) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	m.calls = append(m.calls, "grant:"+roleID)
	if err, ok := m.failGrants[roleID]; ok {
		return err
	}
	return nil
}

func (m *MockRoleClient) RevokeRole(ctx context.Context, guildID, userID, roleID string) error {
	m.calls = append(m.calls, "revoke:"+roleID)
	if err, ok := m.failRevokes[roleID]; ok {
		return err
	}
	return nil
}

func (m *MockRoleClient) ListRoles(ctx context.Context, guildID, userID string) ([]platformtypes.HeldRole, error) {
	return m.heldRoles, nil
}

// MockRetryQueue implements platform.RetryQueue for testing
type MockRetryQueue struct {
	tasks      []platform.RoleTask
	shouldFail bool
}

func (m *MockRetryQueue) Enqueue(ctx context.Context, task platform.RoleTask) error {
	if m.shouldFail {
		return fmt.Errorf("queue unavailable")
	}
	m.tasks = append(m.tasks, task)
	return nil
}

func strRef(v string) *string {
	return &v
}

var _ = Describe("Synchronizer", func() {
	var (
		client *MockRoleClient
		queue  *MockRetryQueue
		sync   *platform.Synchronizer
		ctx    context.Context
	)

	BeforeEach(func() {
		client = NewMockRoleClient()
		queue = &MockRetryQueue{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		sync = platform.NewSynchronizer(client, queue, logger)
		ctx = context.Background()
	})

	Describe("SyncTeamRoles", func() {
		Context("when both calls land", func() {
			It("should revoke the replaced role and grant the new one without warnings", func() {
				warnings := sync.SyncTeamRoles(ctx, "g", "u", strRef("old-team"), strRef("new-team"), 7, 1)
				Expect(warnings).To(BeEmpty())
				Expect(client.calls).To(Equal([]string{"revoke:old-team", "grant:new-team"}))
				Expect(queue.tasks).To(BeEmpty())
			})
		})

		Context("when the grant fails", func() {
			BeforeEach(func() {
				client.failGrants["new-team"] = errors.New("platform down")
			})

			It("should return a warning and queue the grant for retry", func() {
				warnings := sync.SyncTeamRoles(ctx, "g", "u", nil, strRef("new-team"), 7, 1)
				Expect(warnings).To(HaveLen(1))
				Expect(warnings[0].Operation).To(Equal(platform.RoleOpGrant))
				Expect(warnings[0].RoleID).To(Equal("new-team"))
				Expect(warnings[0].Detail).To(ContainSubstring("platform down"))

				Expect(queue.tasks).To(HaveLen(1))
				Expect(queue.tasks[0].Operation).To(Equal(platform.RoleOpGrant))
				Expect(queue.tasks[0].RoleID).To(Equal("new-team"))
				Expect(queue.tasks[0].MemberID).To(Equal(int64(7)))
			})
		})

		Context("when both calls fail", func() {
			BeforeEach(func() {
				client.failRevokes["old-team"] = errors.New("down")
				client.failGrants["new-team"] = errors.New("down")
			})

			It("should still attempt both and report both", func() {
				warnings := sync.SyncTeamRoles(ctx, "g", "u", strRef("old-team"), strRef("new-team"), 7, 1)
				Expect(warnings).To(HaveLen(2))
				Expect(client.calls).To(Equal([]string{"revoke:old-team", "grant:new-team"}))
				Expect(queue.tasks).To(HaveLen(2))
			})
		})

		Context("when the member has no previous team role", func() {
			It("should only grant", func() {
				warnings := sync.SyncTeamRoles(ctx, "g", "u", nil, strRef("new-team"), 7, 1)
				Expect(warnings).To(BeEmpty())
				Expect(client.calls).To(Equal([]string{"grant:new-team"}))
			})
		})
	})

	Describe("BestEffortRevoke", func() {
		BeforeEach(func() {
			client.failRevokes["rank-role"] = errors.New("timeout")
		})

		It("should revoke what it can and queue the rest", func() {
			warnings := sync.BestEffortRevoke(ctx, "g", "u", []string{"rank-role", "team-role", ""}, 7, 1)
			Expect(warnings).To(HaveLen(1))
			Expect(warnings[0].RoleID).To(Equal("rank-role"))
			Expect(client.calls).To(Equal([]string{"revoke:rank-role", "revoke:team-role"}))
			Expect(queue.tasks).To(HaveLen(1))
		})
	})

	Describe("SwapRankRoles", func() {
		Context("when both calls land", func() {
			It("should grant the new role before revoking the old", func() {
				err := sync.SwapRankRoles(ctx, "g", "u", strRef("sgt-role"), "lt-role")
				Expect(err).NotTo(HaveOccurred())
				Expect(client.calls).To(Equal([]string{"grant:lt-role", "revoke:sgt-role"}))
			})
		})

		Context("when the grant fails", func() {
			BeforeEach(func() {
				client.failGrants["lt-role"] = errors.New("rejected")
			})

			It("should fail without touching the old role", func() {
				err := sync.SwapRankRoles(ctx, "g", "u", strRef("sgt-role"), "lt-role")
				Expect(err).To(HaveOccurred())
				Expect(client.calls).To(Equal([]string{"grant:lt-role"}))
			})
		})

		Context("when the revoke fails after a successful grant", func() {
			BeforeEach(func() {
				client.failRevokes["sgt-role"] = errors.New("timeout")
			})

			It("should take back the fresh grant and fail", func() {
				err := sync.SwapRankRoles(ctx, "g", "u", strRef("sgt-role"), "lt-role")
				Expect(err).To(HaveOccurred())
				Expect(client.calls).To(Equal([]string{"grant:lt-role", "revoke:sgt-role", "revoke:lt-role"}))
			})
		})

		Context("when the member held no rank before", func() {
			It("should only grant", func() {
				err := sync.SwapRankRoles(ctx, "g", "u", nil, "cadet-role")
				Expect(err).NotTo(HaveOccurred())
				Expect(client.calls).To(Equal([]string{"grant:cadet-role"}))
			})
		})

		Context("when old and new resolve to the same role", func() {
			It("should not revoke what it just granted", func() {
				err := sync.SwapRankRoles(ctx, "g", "u", strRef("same-role"), "same-role")
				Expect(err).NotTo(HaveOccurred())
				Expect(client.calls).To(Equal([]string{"grant:same-role"}))
			})
		})
	})

	Describe("Compensate", func() {
		It("should undo the grant and restore the revoked role", func() {
			err := sync.Compensate(ctx, "g", "u", "lt-role", strRef("sgt-role"))
			Expect(err).NotTo(HaveOccurred())
			Expect(client.calls).To(Equal([]string{"revoke:lt-role", "grant:sgt-role"}))
		})

		It("should report a restore failure but still attempt every step", func() {
			client.failRevokes["lt-role"] = errors.New("down")

			err := sync.Compensate(ctx, "g", "u", "lt-role", strRef("sgt-role"))
			Expect(err).To(HaveOccurred())
			Expect(client.calls).To(Equal([]string{"revoke:lt-role", "grant:sgt-role"}))
		})
	})
})
