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

import (
	"context"

	"github.com/yemnet/nmosctl/pkg/connection"
	"github.com/yemnet/nmosctl/pkg/models"
	"github.com/yemnet/nmosctl/pkg/query"
)

// ConnectionAPI is the slice of the IS-05 client the controller drives.
// Satisfied by *connection.Client.
type ConnectionAPI interface {
	GetActive(ctx context.Context, id string, keys ...string) (models.Resource, error)
	StageReceiver(ctx context.Context, id, senderID string, red, blue connection.ReceiverLeg, sdp string, opts connection.StageOptions) (models.StagePayload, error)
	DisconnectReceiver(ctx context.Context, id string, opts connection.StageOptions) (models.StagePayload, error)
	BulkStage(ctx context.Context, kind models.ResourceKind, payloads map[string]models.StagePayload) error
}

// MirrorReader is the controller's read path over the mirrored registry
// state. Satisfied by *mirror.StoreReader.
type MirrorReader interface {
	Resources(ctx context.Context, rt models.ResourceType, filter *query.Filter) ([]models.Resource, error)
	ResourceField(ctx context.Context, rt models.ResourceType, filter *query.Filter, key string) (string, error)
}

// RegistryAPI is the slice of the live Query API client the controller
// needs beyond mirrored reads. Satisfied by *query.Client.
type RegistryAPI interface {
	CreateSubscription(ctx context.Context, rt models.ResourceType, persist bool, params map[string]string) (*models.Subscription, error)
	Manifest(ctx context.Context, senderID string) (string, error)
}
