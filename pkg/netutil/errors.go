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

package netutil

import "errors"

var (
	ErrInvalidIP       = errors.New("invalid IP address")
	ErrInvalidPort     = errors.New("port number invalid, should be between 1 and 65535")
	ErrInvalidProtocol = errors.New("invalid protocol")
	ErrUnreachable     = errors.New("endpoint unreachable")
)
