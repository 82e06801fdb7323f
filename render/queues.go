package render

import "github.com/cockroachdb/errors"

type QueueFamilyIndices struct {
	GraphicsFamily *int
	PresentFamily  *int
}

func (i *QueueFamilyIndices) IsComplete() bool {
	return i.GraphicsFamily != nil && i.PresentFamily != nil
}

// Shared reports whether one family both draws and presents, in which case
// swapchain images can be owned exclusively.
func (i *QueueFamilyIndices) Shared() bool {
	return i.IsComplete() && *i.GraphicsFamily == *i.PresentFamily
}

// FindQueueFamilies scans the device's queue families in index order and
// picks the first one that accepts graphics work and the first one that can
// present to the surface. The two may be the same family. The result may be
// incomplete; ResolveQueueFamilies turns that into an error.
func FindQueueFamilies(device PhysicalDevice, surface Surface) (QueueFamilyIndices, error) {
	indices := QueueFamilyIndices{}

	for queueFamilyIdx, queueFamily := range device.QueueFamilyProperties() {
		if indices.GraphicsFamily == nil && queueFamily.Graphics {
			indices.GraphicsFamily = new(int)
			*indices.GraphicsFamily = queueFamilyIdx
		}

		if indices.PresentFamily == nil {
			supported, err := surface.SupportsPresent(device, queueFamilyIdx)
			if err != nil {
				return indices, errors.Wrapf(err, "query present support for queue family %d", queueFamilyIdx)
			}

			if supported {
				indices.PresentFamily = new(int)
				*indices.PresentFamily = queueFamilyIdx
			}
		}

		if indices.IsComplete() {
			break
		}
	}

	return indices, nil
}

// ResolveQueueFamilies is FindQueueFamilies for a device that has already
// been chosen: a missing family is an error.
func ResolveQueueFamilies(device PhysicalDevice, surface Surface) (QueueFamilyIndices, error) {
	indices, err := FindQueueFamilies(device, surface)
	if err != nil {
		return indices, err
	}

	if indices.GraphicsFamily == nil {
		return indices, errors.Mark(errors.New("no queue family supports graphics"), ErrNoSuitableQueueFamily)
	}
	if indices.PresentFamily == nil {
		return indices, errors.Mark(errors.New("no queue family can present to the surface"), ErrNoSuitableQueueFamily)
	}

	families := device.QueueFamilyProperties()
	Logger().Info("resolved queue families",
		"graphics", *indices.GraphicsFamily,
		"graphicsQueues", families[*indices.GraphicsFamily].Count,
		"present", *indices.PresentFamily,
		"presentQueues", families[*indices.PresentFamily].Count)
	return indices, nil
}
