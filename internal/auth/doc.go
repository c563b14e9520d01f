// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

// Package auth implements the authentication core: password hashing,
// signed session tokens, and the login/logout service backed by the
// user store and the session registry.
package auth
