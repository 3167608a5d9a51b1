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

package discovery

import "errors"

var (
	ErrNoCandidates     = errors.New("did not find any candidate registries via DNS-SD")
	ErrNoViableRegistry = errors.New("no viable registries found, failed connection tests")
	ErrMissingTXTKey    = errors.New("required key missing from TXT record")
	ErrStaticUnreachable = errors.New("unable to connect to statically declared registry")
)
