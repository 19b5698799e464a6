// VirtIO-over-PCI capability walk and device bring-up (C10)
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virtio

import (
	"encoding/binary"

	"craybond/internal/klog"
	"craybond/internal/reg"
	"craybond/pci"
)

// Device status bits (bit VALUES, matching §4.7's state machine).
const (
	StatusAcknowledge = 1
	StatusDriver      = 2
	StatusDriverOK    = 4
	StatusFeaturesOK  = 8
)

// virtio_pci_cap cfg_type values.
const (
	cfgCommon = 1
	cfgNotify = 2
	cfgISR    = 3
	cfgDevice = 4
	cfgPCI    = 5
)

const capVendorID = 0x09 // cap_vndr == 0x9 identifies a virtio_pci_cap

// pciCapLayout mirrors struct virtio_pci_cap (minus cap_vndr/cap_next,
// already consumed by the generic capability walk).
type pciCapLayout struct {
	Length      uint8
	CfgType     uint8
	Bar         uint8
	_           uint8
	Offset      uint32
	CapLen      uint32
}

// Device wraps a probed PCI device with its virtio configuration regions,
// populated by the capability walk.
type Device struct {
	PCI *pci.Device

	CommonBase uintptr
	NotifyBase uintptr
	NotifyMult uint32
	ISRBase    uintptr
	DeviceBase uintptr
}

// Common configuration offsets (within CommonBase), VirtIO 1.2 §4.1.4.3.
const (
	commonDeviceFeatureSel = 0x00
	commonDeviceFeature    = 0x04
	commonDriverFeatureSel = 0x08
	commonDriverFeature    = 0x0c
	commonNumQueues        = 0x12
	commonDeviceStatus     = 0x14
	commonQueueSel         = 0x16
	commonQueueSize        = 0x18
	commonQueueEnable      = 0x1c
	commonQueueNotifyOff   = 0x1e
	commonQueueDesc        = 0x20
	commonQueueDriver      = 0x28
	commonQueueDevice      = 0x30
)

// Probe walks the capabilities list starting at [base+0x34]: for each
// virtio_pci_cap, it resolves the BAR address (calling SetupBAR if
// unassigned and the cfg_type is below PCI_CFG), then records the four
// configuration region bases by cfg_type, per §4.7's capability walk.
func Probe(d *pci.Device, barCfgBase uint32) (*Device, bool) {
	vd := &Device{PCI: d}

	var haveCommon, haveNotify, haveISR, haveDevice bool

	d.Capabilities(func(off uint32, hdr *pci.CapabilityHeader) bool {
		if hdr.Vendor != capVendorID {
			return true
		}

		cap := readCap(d, off)

		barAddr := d.BaseAddress(int(cap.Bar))
		if barAddr == 0 && cap.CfgType < cfgPCI {
			barAddr = d.SetupBAR(int(cap.Bar), barCfgBase)
		}

		regionBase := uintptr(barAddr) + uintptr(cap.Offset)

		switch cap.CfgType {
		case cfgCommon:
			vd.CommonBase = regionBase
			haveCommon = true
		case cfgNotify:
			vd.NotifyBase = regionBase
			vd.NotifyMult = d.Read(off + 16) // word following the cap header
			haveNotify = true
		case cfgISR:
			vd.ISRBase = regionBase
			haveISR = true
		case cfgDevice:
			vd.DeviceBase = regionBase
			haveDevice = true
		}

		return true
	})

	if !haveCommon || !haveNotify || !haveISR || !haveDevice {
		klog.Warn("virtio: missing required capability region")
		return nil, false
	}

	return vd, true
}

func readCap(d *pci.Device, off uint32) pciCapLayout {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:], d.Read(off))
	binary.LittleEndian.PutUint32(buf[4:], d.Read(off+4))
	binary.LittleEndian.PutUint32(buf[8:], d.Read(off+8))
	binary.LittleEndian.PutUint32(buf[12:], d.Read(off+12))

	return pciCapLayout{
		Length:  buf[2],
		CfgType: buf[3],
		Bar:     buf[4],
		Offset:  binary.LittleEndian.Uint32(buf[8:]),
		CapLen:  binary.LittleEndian.Uint32(buf[12:]),
	}
}

// BringUp drives the device status byte through
// 0 -> ACK -> DRIVER -> FEATURES_OK (with read-back check), selects queue
// 0, leaves its size unchanged, installs a fresh Queue's physical
// addresses, enables it, then sets DRIVER_OK, per §4.7 device bring-up.
// Returns false (device left unusable) if the FEATURES_OK read-back fails.
func (vd *Device) BringUp(q *Queue) bool {
	reg.Write8(vd.CommonBase+commonDeviceStatus, 0)
	reg.Write8(vd.CommonBase+commonDeviceStatus, StatusAcknowledge)
	reg.Write8(vd.CommonBase+commonDeviceStatus, StatusAcknowledge|StatusDriver)
	reg.Write8(vd.CommonBase+commonDeviceStatus, StatusAcknowledge|StatusDriver|StatusFeaturesOK)

	if reg.Read8(vd.CommonBase+commonDeviceStatus)&StatusFeaturesOK == 0 {
		klog.Warn("virtio: FEATURES_OK read-back failed")
		return false
	}

	reg.Write16(vd.CommonBase+commonQueueSel, 0)
	size := reg.Read16(vd.CommonBase + commonQueueSize)
	reg.Write16(vd.CommonBase+commonQueueSize, size)

	reg.Write64(vd.CommonBase+commonQueueDesc, uint64(q.Desc))
	reg.Write64(vd.CommonBase+commonQueueDriver, uint64(q.Avail))
	reg.Write64(vd.CommonBase+commonQueueDevice, uint64(q.Device))
	reg.Write16(vd.CommonBase+commonQueueEnable, 1)

	q.NotifyBase = vd.NotifyBase
	q.NotifyMult = vd.NotifyMult

	reg.Write8(vd.CommonBase+commonDeviceStatus,
		StatusAcknowledge|StatusDriver|StatusFeaturesOK|StatusDriverOK)

	return true
}
