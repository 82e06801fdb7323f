package render

import "github.com/cockroachdb/errors"

// Transfer uploads static data into device-local buffers through a host
// visible staging buffer.
//
// Each upload records a one-shot command buffer, submits it without a fence
// and waits for the whole queue to go idle. That stalls the queue, which is
// acceptable because uploads only happen before the first frame.
type Transfer struct {
	Device Device
	Queue  Queue
}

// UploadVertices copies data into a new device-local vertex buffer. The
// staging buffer is released before returning.
func (t *Transfer) UploadVertices(data []byte) (Buffer, error) {
	return t.Upload(data, BufferUsageVertexBuffer)
}

func (t *Transfer) Upload(data []byte, usage BufferUsage) (Buffer, error) {
	size := len(data)
	if size == 0 {
		return nil, errors.Mark(errors.New("nothing to upload"), ErrTransferFailed)
	}

	staging, err := t.Device.CreateBuffer(size, BufferUsageTransferSrc, MemoryHostVisible)
	if err != nil {
		return nil, fail(err, ErrTransferFailed, "create staging buffer of %d bytes", size)
	}
	defer staging.Destroy()

	err = staging.Write(data)
	if err != nil {
		return nil, fail(err, ErrTransferFailed, "write staging buffer")
	}

	buffer, err := t.Device.CreateBuffer(size, BufferUsageTransferDst|usage, MemoryDeviceLocal)
	if err != nil {
		return nil, fail(err, ErrTransferFailed, "create device-local buffer of %d bytes", size)
	}

	err = t.copyBuffer(staging, buffer, size)
	if err != nil {
		buffer.Destroy()
		return nil, err
	}

	Logger().Info("uploaded buffer", "bytes", size, "queueFamily", t.Queue.Family())
	return buffer, nil
}

func (t *Transfer) copyBuffer(src, dst Buffer, size int) error {
	buffers, err := t.Device.AllocateCommandBuffers(1)
	if err != nil {
		return fail(err, ErrTransferFailed, "allocate transfer command buffer")
	}
	buffer := buffers[0]
	defer t.Device.FreeCommandBuffers(buffers)

	err = buffer.Begin(true)
	if err != nil {
		return fail(err, ErrTransferFailed, "begin transfer command buffer")
	}

	err = buffer.CopyBuffer(src, dst, size)
	if err != nil {
		return fail(err, ErrTransferFailed, "record buffer copy")
	}

	err = buffer.End()
	if err != nil {
		return fail(err, ErrTransferFailed, "end transfer command buffer")
	}

	err = t.Queue.Submit(nil, Submission{CommandBuffer: buffer})
	if err != nil {
		return fail(err, ErrTransferFailed, "submit transfer")
	}

	err = t.Queue.WaitIdle()
	if err != nil {
		return fail(err, ErrTransferFailed, "wait for transfer queue idle")
	}

	return nil
}
