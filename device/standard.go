package device

// dispatchStandard implements the nine standard request table (§4.2),
// called from [Device.CompleteRequest] when the class returns
// [VerdictPassthrough]. It runs entirely under the core lock; the two
// requests that need class input (SET_CONFIGURATION, SET_INTERFACE) park
// the transfer and queue a class upcall instead of completing here.
func (d *Device) dispatchStandard(setup *SetupPacket) {
	if !setup.IsStandard() {
		d.ep0Stall()
		return
	}
	switch setup.Recipient() {
	case RequestRecipientDevice:
		d.dispatchDeviceRequest(setup)
	case RequestRecipientInterface:
		d.dispatchInterfaceRequest(setup)
	case RequestRecipientEndpoint:
		d.dispatchEndpointRequest(setup)
	default:
		d.ep0Stall()
	}
}

func (d *Device) dispatchDeviceRequest(setup *SetupPacket) {
	switch setup.Request {
	case RequestGetStatus:
		if d.state != StateConfigured && setup.Index != 0 {
			d.ep0Stall()
			return
		}
		buf := d.ctrl.responseBuf[:2]
		status := d.deviceStatus()
		buf[0] = byte(status)
		buf[1] = byte(status >> 8)
		d.grantDataIn(buf, false)

	case RequestClearFeature:
		if setup.Value == uint16(FeatureDeviceRemoteWakeup) {
			d.remoteWakeupEnabled = false
			d.grantStatus()
			return
		}
		d.ep0Stall()

	case RequestSetFeature:
		if setup.Value == uint16(FeatureDeviceRemoteWakeup) {
			d.remoteWakeupEnabled = true
			d.grantStatus()
			return
		}
		d.ep0Stall()

	case RequestSetAddress:
		if setup.Value > 127 || (d.state != StateDefault && d.state != StateAddress) {
			d.ep0Stall()
			return
		}
		d.ctrl.pendingSetAddress = true
		d.ctrl.pendingAddress = uint8(setup.Value)
		d.grantStatus()

	case RequestGetDescriptor:
		d.dispatchGetDescriptor(setup)

	case RequestSetDescriptor:
		d.ep0Stall()

	case RequestGetConfiguration:
		buf := d.ctrl.responseBuf[:1]
		buf[0] = d.configValue
		d.grantDataIn(buf, false)

	case RequestSetConfiguration:
		if d.state != StateAddress && d.state != StateConfigured {
			d.ep0Stall()
			return
		}
		d.ctrl.pendingValue = uint8(setup.Value)
		d.ctrl.userCallback = callbackSetConfiguration
		d.endpointWindowOpen = true
		d.queueUpcall(upcallEntry{kind: upcallSetConfiguration, value: d.ctrl.pendingValue})

	default:
		d.ep0Stall()
	}
}

func (d *Device) dispatchInterfaceRequest(setup *SetupPacket) {
	iface := setup.InterfaceNumber()
	switch setup.Request {
	case RequestGetStatus:
		if d.state != StateConfigured {
			d.ep0Stall()
			return
		}
		buf := d.ctrl.responseBuf[:2]
		buf[0], buf[1] = 0, 0
		d.grantDataIn(buf, false)

	case RequestGetInterface:
		if d.state != StateConfigured || int(iface) >= len(d.altSetting) {
			d.ep0Stall()
			return
		}
		buf := d.ctrl.responseBuf[:1]
		buf[0] = d.altSetting[iface]
		d.grantDataIn(buf, false)

	case RequestSetInterface:
		if d.state != StateConfigured || int(iface) >= len(d.altSetting) {
			d.ep0Stall()
			return
		}
		d.ctrl.pendingIface = iface
		d.ctrl.pendingAlt = uint8(setup.Value)
		d.ctrl.userCallback = callbackSetInterface
		d.queueUpcall(upcallEntry{kind: upcallSetInterface, iface: iface, alt: d.ctrl.pendingAlt})

	default:
		d.ep0Stall()
	}
}

func (d *Device) dispatchEndpointRequest(setup *SetupPacket) {
	addr := setup.EndpointAddress()
	switch setup.Request {
	case RequestGetStatus:
		if d.state != StateConfigured && setup.Index != 0 {
			d.ep0Stall()
			return
		}
		var status uint16
		if num := addr & 0x0F; num != 0 {
			rec, ok := d.endpoints.lookup(addr)
			if !ok {
				d.ep0Stall()
				return
			}
			if rec.stalled() {
				status = 1
			}
		}
		buf := d.ctrl.responseBuf[:2]
		buf[0] = byte(status)
		buf[1] = byte(status >> 8)
		d.grantDataIn(buf, false)

	case RequestClearFeature:
		if setup.Value != uint16(FeatureEndpointHalt) {
			d.ep0Stall()
			return
		}
		if addr&0x0F == 0 || d.endpoints.unstall(addr) {
			d.grantStatus()
			return
		}
		d.ep0Stall()

	case RequestSetFeature:
		if setup.Value != uint16(FeatureEndpointHalt) {
			d.ep0Stall()
			return
		}
		if addr&0x0F == 0 || d.endpoints.stall(addr) {
			d.grantStatus()
			return
		}
		d.ep0Stall()

	case RequestSynchFrame:
		d.ep0Stall()

	default:
		d.ep0Stall()
	}
}

// dispatchGetDescriptor serves GET_DESCRIPTOR entirely out of the
// per-transfer response buffer and the class-supplied configuration/
// string bytes; it never allocates.
func (d *Device) dispatchGetDescriptor(setup *SetupPacket) {
	switch setup.DescriptorType() {
	case DescriptorTypeDevice:
		if d.descriptor == nil {
			d.ep0Stall()
			return
		}
		buf := d.ctrl.responseBuf[:DeviceDescriptorSize]
		d.descriptor.MarshalTo(buf)
		d.grantDataIn(buf, false)

	case DescriptorTypeConfiguration:
		if d.configDescriptor == nil {
			d.ep0Stall()
			return
		}
		d.grantDataIn(d.configDescriptor, false)

	case DescriptorTypeString:
		idx := setup.DescriptorIndex()
		if int(idx) >= len(d.strings) || d.strings[idx] == nil {
			d.ep0Stall()
			return
		}
		d.grantDataIn(d.strings[idx], false)

	default:
		d.ep0Stall()
	}
}

// deviceStatus reports the 2-byte GET_STATUS(Device) value. Bit 0 is the
// Self-Powered bit, which this stack reports set unconditionally — a
// bus-powered device is expected to report 0, but nothing in this module
// tracks the power source; the class sets bmAttributes in the
// configuration descriptor independently and should keep this bit
// consistent with that byte (SPEC_FULL.md Open Question 2).
func (d *Device) deviceStatus() uint16 {
	var status uint16
	status |= 1 << 0
	if d.remoteWakeupEnabled {
		status |= 1 << 1
	}
	return status
}
