package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"citifix/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

var userCols = []string{"id", "name", "role", "reward_points", "complaints_resolved", "created_at"}

func TestCreateUser(t *testing.T) {
	it(func() {
		testCases := []struct {
			name     string
			userName string
			role     string

			execExpected bool
			expectRole   string
			expectError  error
		}{
			{
				name:         "Citizen by default",
				userName:     "Asha",
				role:         "",
				execExpected: true,
				expectRole:   models.RoleCitizen,
			}, {
				name:         "Explicit admin",
				userName:     "Ravi",
				role:         models.RoleAdmin,
				execExpected: true,
				expectRole:   models.RoleAdmin,
			}, {
				name:        "Blank name",
				userName:    "   ",
				role:        models.RoleCitizen,
				expectError: ErrValidation,
			}, {
				name:        "Unknown role",
				userName:    "Asha",
				role:        "moderator",
				expectError: ErrValidation,
			},
		}

		for _, testCase := range testCases {
			setUp()
			if testCase.execExpected {
				mock.ExpectExec("INSERT INTO users").
					WithArgs(sqlmock.AnyArg(), testCase.userName, testCase.expectRole, sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(1, 1))
			}

			u, err := svc.CreateUser(context.Background(), testCase.userName, testCase.role)

			if testCase.expectError != nil {
				if !errors.Is(err, testCase.expectError) {
					t.Errorf("%s: expected error %v, got %v", testCase.name, testCase.expectError, err)
				}
				continue
			}
			if err != nil {
				t.Errorf("%s: unexpected error %v", testCase.name, err)
				continue
			}
			if u.Role != testCase.expectRole {
				t.Errorf("%s: expected role %q, got %q", testCase.name, testCase.expectRole, u.Role)
			}
			if u.RewardPoints != 0 || u.ComplaintsResolved != 0 {
				t.Errorf("%s: expected zeroed counters, got %+v", testCase.name, u)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("%s: unmet expectations: %v", testCase.name, err)
			}
		}
	})
}

func TestGetUser(t *testing.T) {
	it(func() {
		mock.ExpectQuery("FROM users WHERE id = (.+)").
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow("user-1", "Asha", models.RoleCitizen, 30, 3, time.Now()))

		u, err := svc.GetUser(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u.RewardPoints != 30 || u.ComplaintsResolved != 3 {
			t.Errorf("unexpected user: %+v", u)
		}
	})
	it(func() {
		mock.ExpectQuery("FROM users WHERE id = (.+)").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(userCols))

		_, err := svc.GetUser(context.Background(), "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestGrantPoints(t *testing.T) {
	it(func() {
		testCases := []struct {
			name         string
			userID       string
			rowsAffected int64
			expectError  error
		}{
			{name: "Existing user", userID: "user-1", rowsAffected: 1},
			{name: "Unknown user", userID: "missing", rowsAffected: 0, expectError: ErrNotFound},
		}

		for _, testCase := range testCases {
			setUp()
			mock.ExpectExec("(?s)UPDATE users.+SET reward_points = reward_points (.+), complaints_resolved = complaints_resolved (.+)").
				WithArgs(10, testCase.userID).
				WillReturnResult(sqlmock.NewResult(0, testCase.rowsAffected))

			err := svc.GrantPoints(context.Background(), testCase.userID, 10)
			if !errors.Is(err, testCase.expectError) {
				t.Errorf("%s: expected error %v, got %v", testCase.name, testCase.expectError, err)
			}
		}
	})
}

func TestLeaderboard(t *testing.T) {
	it(func() {
		mock.ExpectQuery("(?s)FROM users.+ORDER BY reward_points DESC").
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow("user-2", "Ravi", models.RoleCitizen, 50, 5, time.Now()).
				AddRow("user-1", "Asha", models.RoleCitizen, 30, 3, time.Now()))

		users, err := svc.Leaderboard(context.Background(), 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(users) != 2 {
			t.Fatalf("expected 2 users, got %d", len(users))
		}
		if users[0].ID != "user-2" {
			t.Errorf("expected user-2 first, got %s", users[0].ID)
		}
	})
}

func TestGetUserStats(t *testing.T) {
	it(func() {
		mock.ExpectQuery("FROM users WHERE id = (.+)").
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow("user-1", "Asha", models.RoleCitizen, 30, 3, time.Now()))
		mock.ExpectQuery("SELECT COUNT(.+) FROM complaints WHERE user_id = (.+)").
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(8))

		stats, err := svc.GetUserStats(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.ComplaintsSubmitted != 8 || stats.ComplaintsResolved != 3 || stats.RewardPoints != 30 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})
}
