package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// All models are automatically exported from their respective files:
// - Problem, Category, ProblemLike, SharedProblem, ProblemPatch from problem.go
// - Workbook, WorkbookProblem from workbook.go
// - ProblemHistory, TestResult from history.go
// - Invite, TestCenter from invite.go
// - User, Session from user.go

// Database schema overview:
// 1. problem - Questions owned by a user, optionally shared to the board
// 2. category - Problem categories
// 3. problem_like / shared_problem - Likes and per-user bookmarks on problems
// 4. workbook / workbook_problem - Problem sets and their unique (workbook_id, problem_id) links
// 5. problem_history - One row per attempt at a problem inside a test center
// 6. invite / test_center / test_result - Exam rooms, their invitations and completed attempts
// Users live in Supabase Auth and are referenced by uuid only.

// All returns every model in migration order
func All() []interface{} {
	return []interface{}{
		&Category{},
		&Problem{},
		&ProblemLike{},
		&SharedProblem{},
		&Workbook{},
		&WorkbookProblem{},
		&TestCenter{},
		&Invite{},
		&TestResult{},
		&ProblemHistory{},
	}
}
