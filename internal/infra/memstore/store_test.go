package memstore

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"employee_task_bot/internal/domain/conversation"
	"employee_task_bot/internal/domain/employee"
	"employee_task_bot/internal/domain/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers_UpdateSerializesPerRecipient(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.Users().Create(ctx, "100")
	require.NoError(t, err)
	require.NoError(t, s.Users().Update(ctx, "100", func(_ context.Context, u *conversation.User) error {
		u.State = "0"
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Users().Update(ctx, "100", func(_ context.Context, u *conversation.User) error {
				n, err := strconv.Atoi(u.State)
				if err != nil {
					return err
				}
				u.State = strconv.Itoa(n + 1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	u, err := s.Users().GetByRecipient(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "50", u.State)
}

func TestUsers_RecreateResetsState(t *testing.T) {
	s := New()
	ctx := context.Background()
	first, err := s.Users().Create(ctx, "100")
	require.NoError(t, err)
	s.SetUserState("100", "form.register#phone#{}")

	again, err := s.Users().Create(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "form.register#phone#{}", again.State)

	fresh, err := s.Users().Recreate(ctx, "100")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, fresh.ID)
	assert.Equal(t, "idle", fresh.State)

	err = s.Users().Update(ctx, "404", func(context.Context, *conversation.User) error { return nil })
	assert.ErrorIs(t, err, conversation.ErrUserNotFound)
}

func TestTasks_ClaimsSucceedOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	emp := s.AddEmployee(&employee.Employee{FullName: "A"})
	tk := s.AddTask(&task.Task{Name: "T"})

	claimed, err := s.Tasks().MarkSent(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = s.Tasks().MarkSent(ctx, tk.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	a, created, err := s.Assignments().CreateIfAbsent(ctx, tk.ID, emp.ID)
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := s.Assignments().CreateIfAbsent(ctx, tk.ID, emp.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, again.ID)

	require.NoError(t, s.DelayedTasks().Create(ctx, tk.ID, emp.ID))
	require.NoError(t, s.DelayedTasks().Create(ctx, tk.ID, emp.ID))
	markers, err := s.DelayedTasks().List(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	deleted, err := s.DelayedTasks().Delete(ctx, markers[0].ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = s.DelayedTasks().Delete(ctx, markers[0].ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestAssignments_ReopenKeepsSingleOpenAssignment(t *testing.T) {
	s := New()
	ctx := context.Background()
	emp := s.AddEmployee(&employee.Employee{FullName: "A"})
	tk := s.AddTask(&task.Task{Name: "T"})
	first, err := s.Assignments().Accept(ctx, tk.ID, emp.ID)
	require.NoError(t, err)

	reopened, err := s.Assignments().Reopen(ctx, tk.ID, emp.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, reopened.ID)
	assert.False(t, reopened.Accepted)

	open, err := s.Assignments().GetOpen(ctx, tk.ID, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, reopened.ID, open.ID)

	ignored, err := s.Tasks().ListForEmployee(ctx, emp.ID, false)
	require.NoError(t, err)
	assert.Len(t, ignored, 1)
	active, err := s.Tasks().ListForEmployee(ctx, emp.ID, true)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestEmployees_SaveUpsertsByRecipient(t *testing.T) {
	s := New()
	ctx := context.Background()
	dep := s.AddDepartment("Склад")
	e := &employee.Employee{FullName: "A", RecipientID: "100"}
	require.NoError(t, s.Employees().Save(ctx, e))
	_, err := s.Employees().SetConfirmed(ctx, e.ID, true)
	require.NoError(t, err)

	update := &employee.Employee{FullName: "B", RecipientID: "100", DepartmentIDs: []int64{dep.ID}}
	require.NoError(t, s.Employees().Save(ctx, update))
	assert.Equal(t, e.ID, update.ID)
	assert.True(t, update.Confirmed)

	stored, err := s.Employees().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", stored.FullName)
	assert.Equal(t, []int64{dep.ID}, stored.DepartmentIDs)
}
