// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets time-dependent code take its clock as a value.
//
// Production code holds a [Clock] field set to [Real]. Tests substitute
// [Fake], whose time moves only when the test calls [FakeClock.Advance],
// and use [FakeClock.WaitForTimers] to know that the code under test has
// armed its timer before advancing past it:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	supervisor := room.NewSupervisor(session, commands, events, room.SupervisorOptions{Clock: fake})
//	go supervisor.Run(ctx)
//	cancel()
//	fake.WaitForTimers(1)
//	fake.Advance(drainTimeout)
package clock
