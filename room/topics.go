// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/bureau-foundation/gossip/lib/ticket"
)

// generatedTopics holds every TopicID this process has generated, so
// no two sessions created here ever share a random topic.
var generatedTopics = mapset.NewSet[ticket.TopicID]()

// freshTopic generates a TopicID not generated before by this process.
func freshTopic() (ticket.TopicID, error) {
	for {
		topic, err := ticket.NewTopicID()
		if err != nil {
			return ticket.TopicID{}, err
		}
		if generatedTopics.Add(topic) {
			return topic, nil
		}
	}
}
