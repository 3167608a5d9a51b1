/*
 * Copyright 2026 Yem Networks.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package controller

import "errors"

var (
	ErrRegistryExists     = errors.New("registration server already exists with this socket")
	ErrRegistryNotLive    = errors.New("can't set active registry, registry isn't live")
	ErrRegistryIsActive   = errors.New("can't remove registry, it is the current active registry")
	ErrRegistryUnknown    = errors.New("registry is not known to the controller")
	ErrNoActiveRegistry   = errors.New("no active registry")
	ErrNotPending         = errors.New("receiver is not pending activation")
	ErrNoConnectionClient = errors.New("no connection client for device")
	ErrInvalidUID         = errors.New("malformed resource uid")
)
