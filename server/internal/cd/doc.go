// Package cd derives deployment health from the current window of release
// deployments.
//
// Unlike the build engine, DeployBrokenCheck names a single broken release
// definition instead of counting them, and the one-shot checks use a five
// minute window with three outcomes: failed, succeeded and pending approval.
package cd
