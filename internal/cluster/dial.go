package cluster

import "ringstore/internal/node"

// NodeDialer adapts a node.ClientManager to a DialFunc.
func NodeDialer(cm *node.ClientManager) DialFunc {
	return func(addr string) (StorageClient, error) {
		c, err := cm.Client(addr)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
