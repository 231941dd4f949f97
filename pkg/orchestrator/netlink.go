/*
 * Copyright 2026 ThingDB.
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

package orchestrator

import (
	"fmt"
	"net"
	"os"

	"github.com/vishvananda/netlink"

	"github.com/thingdb/netprov/pkg/models"
)

// netlinkManager implements LinkManager over rtnetlink.
type netlinkManager struct{}

// NewLinkManager returns the rtnetlink-backed link manager.
func NewLinkManager() LinkManager {
	return &netlinkManager{}
}

func (*netlinkManager) List() ([]models.InterfaceRecord, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	var records []models.InterfaceRecord

	for _, link := range links {
		attrs := link.Attrs()

		if attrs.Flags&net.FlagLoopback != 0 {
			continue
		}

		rec := models.InterfaceRecord{
			Name:      attrs.Name,
			Kind:      interfaceKind(attrs.Name),
			OperState: operState(attrs.OperState),
			AdminUp:   attrs.Flags&net.FlagUp != 0,
		}

		if addrs, addrErr := netlink.AddrList(link, netlink.FAMILY_V4); addrErr == nil && len(addrs) > 0 {
			rec.IPAddress = addrs[0].IP.String()
		}

		records = append(records, rec)
	}

	return records, nil
}

func (*netlinkManager) SetUp(name string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("failed to find link %s: %w", name, err)
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("failed to bring up %s: %w", name, err)
	}

	return nil
}

func (*netlinkManager) RouteCount() (int, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return 0, fmt.Errorf("failed to list routes: %w", err)
	}

	return len(routes), nil
}

func interfaceKind(name string) models.InterfaceKind {
	if _, err := os.Stat("/sys/class/net/" + name + "/wireless"); err == nil {
		return models.InterfaceWireless
	}

	return models.InterfaceWired
}

func operState(state netlink.LinkOperState) models.OperState {
	switch state {
	case netlink.OperUp:
		return models.OperUp
	case netlink.OperDormant:
		return models.OperDormant
	default:
		return models.OperDown
	}
}
