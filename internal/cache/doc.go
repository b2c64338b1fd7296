// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

/*
Package cache is the entity cache shared by all SchoolHub feature modules.

Entries are keyed by query (resource, operation and parameters) and carry
the tags their data provides. Mutations invalidate tags, never keys, so a
single write reaches every query that showed the affected entity.

# Tags

A Tag is an entity type plus an id. The reserved id LIST stands for "the
collection of this type":

	list query    provides  {teacher, 1} {teacher, 2} ... {teacher, LIST}
	item query    provides  {teacher, 7}
	create        invalidates {teacher, LIST}
	update/delete invalidates {teacher, 7} {teacher, LIST}

# Freshness

Invalidation marks entries stale and notifies their subscribers through
Changes; the next Read refetches. With MaxAge set, entries also go stale
with age. A failed refetch keeps the previous data and reports the error
alongside it.

# Deduplication

Concurrent reads of the same key share one fetch. A reader whose context
ends stops waiting without cancelling the fetch for the others.

# Lifetime

An entry lives while it has subscribers and for KeepUnusedFor after the
last one leaves. The janitor (Serve) removes expired entries every
CleanupInterval. Clear drops everything, as on logout.

# Usage

	sub := c.Subscribe(cache.GenerateKey("teachers:list", nil), fetchTeachers)
	defer sub.Unsubscribe()

	res := sub.Read(ctx)
	for range sub.Changes() {
	    res = sub.Read(ctx)
	}
*/
package cache
