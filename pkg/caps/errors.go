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

package caps

import "errors"

var (
	ErrMediaType    = errors.New("sender media type not in receiver capabilities")
	ErrChannelCount = errors.New("audio sender channel count is not within receiver capabilities")
	ErrSampleDepth  = errors.New("audio sender bit depth is not within receiver capabilities")
	ErrSampleRate   = errors.New("audio sender sample rate is not within receiver capabilities")
	ErrPacketTime   = errors.New("audio sender packet time is not within receiver capabilities")
)
