/*
 * Copyright 2025 SQLBridge Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package inspector

import (
	"fmt"
)

// ErrDatabaseConnection represents errors that occur while reaching the database
type ErrDatabaseConnection struct {
	Msg string
	Err error
}

// ErrCatalogQuery represents errors that occur while querying catalog views
type ErrCatalogQuery struct {
	Msg string
	Err error
}

// ErrInvalidInput represents errors related to invalid input parameters
type ErrInvalidInput struct {
	Msg string
	Err error
}

// ErrCancelled represents errors when an operation is cancelled
type ErrCancelled struct {
	Msg string
	Err error
}

func (e *ErrDatabaseConnection) Error() string {
	return fmt.Sprintf("database connection error: %s: %v", e.Msg, e.Err)
}

func (e *ErrDatabaseConnection) Unwrap() error {
	return e.Err
}

func (e *ErrCatalogQuery) Error() string {
	return fmt.Sprintf("catalog query error: %s: %v", e.Msg, e.Err)
}

func (e *ErrCatalogQuery) Unwrap() error {
	return e.Err
}

func (e *ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid input error: %s: %v", e.Msg, e.Err)
}

func (e *ErrInvalidInput) Unwrap() error {
	return e.Err
}

func (e *ErrCancelled) Error() string {
	return fmt.Sprintf("operation cancelled: %s: %v", e.Msg, e.Err)
}

func (e *ErrCancelled) Unwrap() error {
	return e.Err
}
