package htmlsession

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagemapper/api/schemas"
)

// Click simulates the default action of a click: following links,
// submitting forms and toggling checkable inputs. Script handlers are not
// run.
func (s *Session) Click(ctx context.Context, ref schemas.NodeRef) error {
	element, err := s.resolve(ref)
	if err != nil {
		return err
	}
	return s.handleClickConsequence(ctx, element)
}

func (s *Session) handleClickConsequence(ctx context.Context, element *html.Node) error {
	tagName := strings.ToLower(element.Data)

	// A click on a descendant of a link follows the link.
	if anchor := closest(element, "a"); anchor != nil {
		href, _ := getAttr(anchor, "href")
		if href != "" && !strings.HasPrefix(strings.ToLower(strings.TrimSpace(href)), "javascript:") {
			return s.Navigate(ctx, href)
		}
	}

	inputType := strings.ToLower(htmlquery.SelectAttr(element, "type"))
	isSubmit := (tagName == "button" && (inputType == "submit" || inputType == "")) ||
		(tagName == "input" && (inputType == "submit" || inputType == "image"))

	if isSubmit {
		if form := findParentForm(element); form != nil {
			return s.submitForm(ctx, form, element)
		}
	}

	if tagName == "input" {
		switch inputType {
		case "checkbox":
			s.mu.Lock()
			if _, checked := getAttr(element, "checked"); checked {
				removeAttr(element, "checked")
			} else {
				setAttr(element, "checked", "checked")
			}
			s.mu.Unlock()
			return nil
		case "radio":
			s.handleRadioSelection(element)
			return nil
		}
	}

	s.logger.Debug("Click consequence ignored for element (no navigation or submission detected)", zap.String("tag", tagName))
	return nil
}

// Type replaces the value of a text control. A trailing newline submits the
// enclosing form, mirroring the Enter key.
func (s *Session) Type(ctx context.Context, ref schemas.NodeRef, text string) error {
	element, err := s.resolve(ref)
	if err != nil {
		return err
	}

	tagName := strings.ToLower(element.Data)
	if tagName != "input" && tagName != "textarea" {
		return fmt.Errorf("element <%s> is not a supported text input", tagName)
	}

	submit := tagName == "input" && strings.HasSuffix(text, "\n")
	if submit {
		text = strings.TrimRight(text, "\r\n")
	}

	s.mu.Lock()
	if tagName == "textarea" {
		for c := element.FirstChild; c != nil; {
			next := c.NextSibling
			element.RemoveChild(c)
			c = next
		}
		element.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	} else {
		setAttr(element, "value", text)
	}
	s.mu.Unlock()

	if submit {
		if form := findParentForm(element); form != nil {
			return s.submitForm(ctx, form, nil)
		}
	}
	return nil
}

// submitForm serializes form and sends it. submitter, when set, contributes
// its own name and value the way a clicked submit button does.
func (s *Session) submitForm(ctx context.Context, form *html.Node, submitter *html.Node) error {
	s.mu.RLock()
	action := htmlquery.SelectAttr(form, "action")
	method := strings.ToUpper(htmlquery.SelectAttr(form, "method"))
	if submitter != nil {
		if v, ok := getAttr(submitter, "formaction"); ok && v != "" {
			action = v
		}
		if v, ok := getAttr(submitter, "formmethod"); ok && v != "" {
			method = strings.ToUpper(v)
		}
	}
	formData := serializeForm(form, submitter)
	s.mu.RUnlock()

	if method != http.MethodPost {
		method = http.MethodGet
	}

	targetURL, err := s.resolveURL(action)
	if err != nil {
		return fmt.Errorf("failed to determine form submission URL: %w", err)
	}

	var req *http.Request
	if method == http.MethodPost {
		encoded := formData.Encode()
		req, err = http.NewRequestWithContext(ctx, method, targetURL.String(), strings.NewReader(encoded))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		// GET submissions replace the query string of the action URL.
		target := *targetURL
		target.RawQuery = formData.Encode()
		target.Fragment = ""
		req, err = http.NewRequestWithContext(ctx, method, target.String(), nil)
		if err != nil {
			return err
		}
	}

	s.logger.Debug("Submitting form", zap.String("method", method), zap.String("action", req.URL.String()))
	return s.executeRequest(ctx, req)
}

func serializeForm(form, submitter *html.Node) url.Values {
	formData := url.Values{}
	for _, input := range htmlquery.Find(form, ".//input | .//textarea | .//select | .//button") {
		name := htmlquery.SelectAttr(input, "name")
		if name == "" {
			continue
		}
		if _, disabled := getAttr(input, "disabled"); disabled {
			continue
		}
		tagName := strings.ToLower(input.Data)
		inputType := strings.ToLower(htmlquery.SelectAttr(input, "type"))

		switch tagName {
		case "input":
			switch inputType {
			case "checkbox", "radio":
				if _, checked := getAttr(input, "checked"); checked {
					value := htmlquery.SelectAttr(input, "value")
					if value == "" {
						value = "on"
					}
					formData.Add(name, value)
				}
			case "submit", "image":
				if input == submitter {
					formData.Add(name, htmlquery.SelectAttr(input, "value"))
				}
			case "button", "reset", "file":
			default:
				formData.Add(name, htmlquery.SelectAttr(input, "value"))
			}
		case "button":
			if input == submitter {
				formData.Add(name, htmlquery.SelectAttr(input, "value"))
			}
		case "textarea":
			formData.Add(name, htmlquery.InnerText(input))
		case "select":
			selected := htmlquery.Find(input, ".//option[@selected]")
			if len(selected) == 0 {
				if first := htmlquery.FindOne(input, ".//option"); first != nil {
					selected = []*html.Node{first}
				}
			}
			for _, opt := range selected {
				value, ok := getAttr(opt, "value")
				if !ok {
					value = normalizeSpace(htmlquery.InnerText(opt))
				}
				formData.Add(name, value)
			}
		}
	}
	return formData
}

// handleRadioSelection ensures only one radio button in a group is checked.
func (s *Session) handleRadioSelection(element *html.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := htmlquery.SelectAttr(element, "name")
	if name == "" {
		setAttr(element, "checked", "checked")
		return
	}

	root := findParentForm(element)
	if root == nil {
		root = element
		for root.Parent != nil {
			root = root.Parent
		}
	}

	for _, radio := range htmlquery.Find(root, ".//input") {
		if !strings.EqualFold(htmlquery.SelectAttr(radio, "type"), "radio") || htmlquery.SelectAttr(radio, "name") != name {
			continue
		}
		if radio == element {
			setAttr(radio, "checked", "checked")
		} else {
			removeAttr(radio, "checked")
		}
	}
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val, true
		}
	}
	return "", false
}

func removeAttr(n *html.Node, key string) {
	for i, attr := range n.Attr {
		if attr.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func setAttr(n *html.Node, key, val string) {
	for i, attr := range n.Attr {
		if attr.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func closest(n *html.Node, tag string) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && strings.EqualFold(p.Data, tag) {
			return p
		}
	}
	return nil
}

func findParentForm(element *html.Node) *html.Node {
	return closest(element.Parent, "form")
}
