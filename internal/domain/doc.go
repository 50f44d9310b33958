// Package domain contains the core entities and wire types for framecast.
//
// It has no dependencies on transport, file system, or logging concerns and
// holds only the data shapes shared by the catalog, session, dispatch, and
// journal components.
package domain
