// Package harness runs favorite-sync scenarios end to end.
//
// A scenario is a YAML file describing a user, seeded server and local
// state, and a flow of toggle, like, unlike and refresh steps. Each run
// gets a fresh in-memory store, an in-process fake recipe API reached
// through the real HTTP client, and an engine with deterministic operation
// ids, so the resulting trace is byte-stable and can be compared against a
// golden file.
//
// # Trace
//
// The trace interleaves, per step, the observed state transitions, the
// requests the API received, confirmation prompts, user-visible failure
// notices and the step result:
//
//	step 1: toggle 김치볶음밥 (30분) code=0
//	  1 like_pending liked:u1:0:김치볶음밥:30분
//	  call POST /recipes/like
//	  2 liked liked:u1:0:김치볶음밥:30분
//	  => liked state=liked code=7
//
// followed by the final local store and the codes liked on the server.
//
// # Golden files
//
// Golden traces live in testdata/golden/<scenario>.golden. To regenerate:
//
//	go test ./internal/harness -update
package harness
