package integration

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tobioye/ballotgate/internal/models"
)

// TestVoteFlow drives the full stack: seed accounts and an open election,
// log in over HTTP, cast a ballot, and verify the duplicate and concurrency
// behavior against a real database.
func TestVoteFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	ts := NewTestServer(testDB.DB)
	defer ts.Close()

	seeded, err := SeedOpenElection(ctx, testDB.Pool)
	require.NoError(t, err)

	matric, password := TestStudent()
	_, err = SeedStudent(ctx, testDB.Pool, matric, password, 300, "male", models.RoleStudent)
	require.NoError(t, err)

	// Login
	resp, err := ts.Request("POST", "/auth/login", map[string]string{
		"matric_number": matric,
		"password":      password,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login struct {
		AccessToken string `json:"access_token"`
		StudentID   string `json:"student_id"`
	}
	require.NoError(t, ParseJSONResponse(resp, &login))
	require.NotEmpty(t, login.AccessToken)

	// Wrong password is rejected without leaking whether the account exists
	resp, err = ts.Request("POST", "/auth/login", map[string]string{
		"matric_number": matric,
		"password":      "WrongPassword1!",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	code, err := GetErrorMessage(resp)
	require.NoError(t, err)
	assert.Equal(t, "INVALID_CREDENTIALS", code)

	castBody := map[string]string{
		"position_id":  seeded.Position.ID,
		"candidate_id": seeded.Candidate.ID,
	}

	// First ballot lands
	resp, err = ts.RequestWithAuth("POST", "/votes", login.AccessToken, castBody)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var cast struct {
		VoteID     string `json:"vote_id"`
		PositionID string `json:"position_id"`
	}
	require.NoError(t, ParseJSONResponse(resp, &cast))
	assert.NotEmpty(t, cast.VoteID)
	assert.Equal(t, seeded.Position.ID, cast.PositionID)

	// Second ballot for the same position is refused
	resp, err = ts.RequestWithAuth("POST", "/votes", login.AccessToken, castBody)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	code, err = GetErrorMessage(resp)
	require.NoError(t, err)
	assert.Equal(t, "ALREADY_VOTED", code)

	// Exactly one row regardless of how often the voter retried
	var voteCount int
	require.NoError(t, testDB.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM votes WHERE voter_id = $1 AND position_id = $2`,
		login.StudentID, seeded.Position.ID,
	).Scan(&voteCount))
	assert.Equal(t, 1, voteCount)
}

// TestConcurrentVotesSingleRow hammers the cast endpoint from parallel
// clients for one voter and asserts the unique constraint lets exactly one
// ballot through.
func TestConcurrentVotesSingleRow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	ts := NewTestServer(testDB.DB)
	defer ts.Close()

	seeded, err := SeedOpenElection(ctx, testDB.Pool)
	require.NoError(t, err)

	matric, password := TestStudent()
	voter, err := SeedStudent(ctx, testDB.Pool, matric, password, 200, "female", models.RoleStudent)
	require.NoError(t, err)

	resp, err := ts.Request("POST", "/auth/login", map[string]string{
		"matric_number": matric,
		"password":      password,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, ParseJSONResponse(resp, &login))

	const clients = 8
	statuses := make([]int, clients)

	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := ts.RequestWithAuth("POST", "/votes", login.AccessToken, map[string]string{
				"position_id":  seeded.Position.ID,
				"candidate_id": seeded.Candidate.ID,
			})
			if err != nil {
				return
			}
			defer resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	created := 0
	conflicts := 0
	for _, status := range statuses {
		switch status {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, created, "exactly one ballot may land")
	assert.Equal(t, clients-1, conflicts, "every other attempt reports the existing ballot")

	var voteCount int
	require.NoError(t, testDB.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM votes WHERE voter_id = $1`, voter.ID,
	).Scan(&voteCount))
	assert.Equal(t, 1, voteCount)
}
