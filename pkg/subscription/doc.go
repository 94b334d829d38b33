// Package subscription decides whether a user may create another note and
// runs the paid-upgrade flow that lifts the cap.
//
// The decision is a pure function of the user's current subscription (with
// its plan joined) and the number of notes they own:
//
//	limits := subscription.Evaluate(sub, noteCount)
//
// Evaluate is fail-closed: no subscription, or a subscription whose plan did
// not resolve, blocks creation. A plan with a nil MaxNotes is unlimited and
// makes the user a pro member. A capped plan allows creation only while at
// least one slot remains.
//
// # Architecture
//
//   - Repository: persistence of plans, subscriptions, payments and note counts
//   - Service: CheckLimits (concurrent dual read, then Evaluate) and Upgrade
//   - PaymentProvider: opaque charge collaborator (PaddleProvider, SandboxProvider)
//   - Notifier: told when a subscription changed so cached limits can refresh
//   - PlansSource: loads the plan catalog (YAMLPlanSource) for SyncPlans
//
// # Usage
//
//	svc := subscription.NewService(repo, subscription.NewSandboxProvider(),
//		subscription.WithNotifier(invalidator),
//		subscription.WithLogger(log),
//	)
//
//	limits, err := svc.CheckLimits(ctx, userID)
//	if err != nil {
//		// errors.Is(err, subscription.ErrStorage): keep the previous decision
//	}
//
//	result, err := svc.Upgrade(ctx, userID, "pro")
//	var payErr *subscription.PaymentError
//	if errors.As(err, &payErr) {
//		// show payErr.Reason to the user
//	}
//
// # Error Handling
//
// Storage failures are wrapped with ErrStorage. Unknown plans return
// ErrPlanNotFound. Declined or unavailable payments return *PaymentError,
// which matches ErrPayment with errors.Is. Operations without a signed-in
// user return ErrNotAuthenticated before touching storage.
package subscription
